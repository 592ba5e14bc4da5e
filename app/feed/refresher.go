package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/extract"
	"github.com/nightfeed/nightfeed/app/fetch"
	"github.com/nightfeed/nightfeed/app/filter"
)

// Refresh outcomes stored in the last_outcome column.
const (
	OutcomeUpdated        = "updated"
	OutcomeNoChange       = "no_change"
	OutcomeFetchFailed    = "fetch_failed"
	OutcomeExtractFailed  = "extract_failed"
	OutcomeAlreadyRunning = "already_running"
	OutcomeDisabled       = "disabled"
)

// Result describes a completed (or skipped) refresh attempt.
type Result struct {
	Outcome  string
	NewItems int
}

// Refresher runs the fetch, extract, filter, store pipeline for a profile.
// Scheduler ticks and feed requests funnel through the same entry points,
// and a per-profile single-flight guard ensures at most one refresh runs
// per profile at any time.
type Refresher struct {
	profiles  database.ProfileRepository
	items     database.ItemRepository
	fetchers  *fetch.Selector
	extractor *extract.Extractor

	mu      sync.Mutex
	running map[int64]bool

	now func() time.Time
}

func NewRefresher(profiles database.ProfileRepository, items database.ItemRepository, fetchers *fetch.Selector) *Refresher {
	return &Refresher{
		profiles:  profiles,
		items:     items,
		fetchers:  fetchers,
		extractor: extract.NewExtractor(),
		running:   make(map[int64]bool),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// EnsureFresh refreshes the profile if its automatic schedule says it is
// due, and is a no-op otherwise. Serving a feed and the scheduler pass both
// call this, so a feed request arriving just after the interval elapses
// does not wait for the next tick.
func (r *Refresher) EnsureFresh(ctx context.Context, profile *database.Profile) (*Result, error) {
	if !profile.Due(r.now()) {
		return &Result{Outcome: OutcomeNoChange}, nil
	}
	return r.Refresh(ctx, profile.ID, database.RefreshAuto)
}

// Refresh runs the pipeline for one profile. The kind decides which
// refresh timestamp a success stamps; both kinds re-arm the automatic
// schedule. Failures record an outcome but leave every timestamp alone,
// so a failed profile stays due and is retried on the next pass.
func (r *Refresher) Refresh(ctx context.Context, profileID int64, kind database.RefreshKind) (*Result, error) {
	if !r.tryStart(profileID) {
		slog.Debug("Refresh already in progress", "profile_id", profileID)
		return &Result{Outcome: OutcomeAlreadyRunning}, nil
	}
	defer r.finish(profileID)

	profile, err := r.profiles.GetProfile(profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.Enabled {
		return &Result{Outcome: OutcomeDisabled}, nil
	}

	if err := r.profiles.UpdateProfileStatus(profile.ID, database.StatusRefreshing); err != nil {
		return nil, err
	}

	result, err := r.run(ctx, profile, kind)
	if err != nil {
		// Pipeline bookkeeping failed; put the profile back to idle so it
		// is not stuck in the refreshing state.
		if serr := r.profiles.UpdateProfileStatus(profile.ID, database.StatusIdle); serr != nil {
			slog.Error("Failed to reset profile status", "profile_id", profile.ID, "error", serr)
		}
		return nil, err
	}

	return result, nil
}

func (r *Refresher) run(ctx context.Context, profile *database.Profile, kind database.RefreshKind) (*Result, error) {
	spec, err := extract.NewSpec(profile.ItemSelector, profile.TitleSelector, profile.LinkSelector, profile.SummarySelector)
	if err != nil {
		return r.fail(profile, OutcomeExtractFailed, err)
	}

	include, err := filter.Parse(profile.IncludeFilters)
	if err != nil {
		return r.fail(profile, OutcomeExtractFailed, err)
	}
	exclude, err := filter.Parse(profile.ExcludeFilters)
	if err != nil {
		return r.fail(profile, OutcomeExtractFailed, err)
	}

	mode, err := fetch.ParseMode(profile.FetchMode)
	if err != nil {
		return r.fail(profile, OutcomeFetchFailed, err)
	}

	page, err := r.fetchers.ForMode(mode).Fetch(ctx, profile.SourceURL)
	if err != nil {
		slog.Warn("Source page fetch failed", "profile_id", profile.ID, "url", profile.SourceURL, "error", err)
		return r.fail(profile, OutcomeFetchFailed, err)
	}

	extracted, err := r.extractor.Run(page.FinalURL, page.HTML, spec)
	if err != nil {
		slog.Warn("Extraction failed", "profile_id", profile.ID, "error", err)
		return r.fail(profile, OutcomeExtractFailed, err)
	}

	var kept []database.ItemCandidate
	for _, c := range extracted.Items {
		if !filter.Apply(c.Title, include, exclude) {
			continue
		}
		kept = append(kept, database.ItemCandidate{Title: c.Title, Link: c.Link, Summary: c.Summary})
	}

	now := r.now()
	inserted := 0
	if len(kept) > 0 {
		inserted, err = r.items.UpsertItems(profile.ID, kept, now)
		if err != nil {
			return nil, err
		}
	}

	// An empty extraction is an unchanged feed, not an error. Selector
	// drift looks the same as a quiet source, so the page is trusted.
	outcome := OutcomeNoChange
	if inserted > 0 {
		outcome = OutcomeUpdated
	}

	if err := r.profiles.RecordRefreshSuccess(profile.ID, kind, outcome, now); err != nil {
		return nil, err
	}

	slog.Info("Profile refreshed", "profile_id", profile.ID, "kind", string(kind),
		"outcome", outcome, "extracted", len(extracted.Items), "kept", len(kept), "new", inserted)

	return &Result{Outcome: outcome, NewItems: inserted}, nil
}

func (r *Refresher) fail(profile *database.Profile, outcome string, cause error) (*Result, error) {
	if err := r.profiles.RecordRefreshFailure(profile.ID, outcome, cause.Error()); err != nil {
		return nil, err
	}
	return &Result{Outcome: outcome}, nil
}

func (r *Refresher) tryStart(profileID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[profileID] {
		return false
	}
	r.running[profileID] = true
	return true
}

func (r *Refresher) finish(profileID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, profileID)
}
