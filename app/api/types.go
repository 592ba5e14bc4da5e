package api

import (
	"context"

	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/feed"
)

type GeneratorInterface interface {
	Run(profile database.Profile, items []database.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type RefresherInterface interface {
	Refresh(ctx context.Context, profileID int64, kind database.RefreshKind) (*feed.Result, error)
	EnsureFresh(ctx context.Context, profile *database.Profile) (*feed.Result, error)
	Preview(ctx context.Context, profile *database.Profile) (*feed.Preview, error)
}

var _ RefresherInterface = (*feed.Refresher)(nil)

type Handler struct {
	profileRepo database.ProfileRepository
	itemRepo    database.ItemRepository
	generator   GeneratorInterface
	refresher   RefresherInterface
}

// ProfileRequest is the JSON payload for creating or updating a profile.
// Pointer fields distinguish "absent" from zero values.
type ProfileRequest struct {
	Title                  string `json:"title"`
	SourceURL              string `json:"source_url"`
	ItemSelector           string `json:"item_selector"`
	TitleSelector          string `json:"title_selector"`
	LinkSelector           string `json:"link_selector"`
	SummarySelector        string `json:"summary_selector"`
	IncludeFilters         string `json:"include_filters"`
	ExcludeFilters         string `json:"exclude_filters"`
	MaxItems               *int   `json:"max_items"`
	RefreshIntervalMinutes *int   `json:"refresh_interval_minutes"`
	FetchMode              string `json:"fetch_mode"`
	Enabled                *bool  `json:"enabled"`
}
