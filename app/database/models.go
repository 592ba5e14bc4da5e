package database

import (
	"time"
)

// TimeLayout is the format used for every timestamp column. All times are
// stored and compared in UTC.
const TimeLayout = "2006-01-02T15:04:05Z"

// Profile lifecycle states.
const (
	StatusIdle       = "idle"
	StatusRefreshing = "refreshing"
	StatusDisabled   = "disabled"
)

// RefreshKind distinguishes which timestamp a successful refresh updates.
type RefreshKind string

const (
	RefreshManual RefreshKind = "manual"
	RefreshAuto   RefreshKind = "auto"
)

// Fetch modes accepted in profile configuration.
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Profile represents a bridged source: one HTML listing page plus the
// extraction and filtering rules that turn it into a feed.
type Profile struct {
	ID                     int64
	Token                  string // Unpredictable feed URL component
	Title                  string
	SourceURL              string
	ItemSelector           string
	TitleSelector          string
	LinkSelector           string
	SummarySelector        string
	IncludeFilters         string
	ExcludeFilters         string
	MaxItems               int
	RefreshIntervalMinutes int
	FetchMode              string
	Enabled                bool
	Status                 string
	LastOutcome            string
	LastError              string
	CreatedAt              time.Time
	EnabledAt              *time.Time
	LastManualRefreshAt    *time.Time
	LastAutoRefreshAt      *time.Time
	UpdatedAt              time.Time
	ItemCount              int // Populated by listing queries, not a column
}

// ManualOnly reports whether the profile is refreshed only on demand.
func (p *Profile) ManualOnly() bool {
	return p.RefreshIntervalMinutes <= 0
}

// NextDue returns when the profile next becomes due for an automatic
// refresh, or nil for manual-only profiles. The anchor is the latest of
// creation, the most recent enable, and the most recent refresh of either
// kind, so a manual refresh pushes the automatic schedule back.
func (p *Profile) NextDue() *time.Time {
	if p.ManualOnly() {
		return nil
	}
	anchor := p.CreatedAt
	for _, t := range []*time.Time{p.EnabledAt, p.LastManualRefreshAt, p.LastAutoRefreshAt} {
		if t != nil && t.After(anchor) {
			anchor = *t
		}
	}
	due := anchor.Add(time.Duration(p.RefreshIntervalMinutes) * time.Minute)
	return &due
}

// Due reports whether an automatic refresh is due at the given instant.
// Disabled profiles are never due.
func (p *Profile) Due(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	next := p.NextDue()
	return next != nil && !now.Before(*next)
}

// Item represents a stored feed entry extracted from the source page.
type Item struct {
	ID          int64
	ProfileID   int64
	Title       string
	Link        string
	Summary     string
	FirstSeenAt time.Time
}

// ItemCandidate is an extracted entry before it has been persisted.
type ItemCandidate struct {
	Title   string
	Link    string
	Summary string
}
