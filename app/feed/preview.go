package feed

import (
	"context"

	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/extract"
	"github.com/nightfeed/nightfeed/app/fetch"
	"github.com/nightfeed/nightfeed/app/filter"
)

// Preview is a dry-run refresh: what the pipeline would produce for a
// profile right now, with nothing stored and no lifecycle state touched.
type Preview struct {
	Items          []database.ItemCandidate
	Extracted      int
	FilteredOut    int
	DroppedOffHost int
	DroppedPartial int
}

// Preview runs fetch, extract and filter for a profile configuration.
// The profile does not need to exist in the database, so the management
// API can preview unsaved selector edits.
func (r *Refresher) Preview(ctx context.Context, profile *database.Profile) (*Preview, error) {
	spec, err := extract.NewSpec(profile.ItemSelector, profile.TitleSelector, profile.LinkSelector, profile.SummarySelector)
	if err != nil {
		return nil, err
	}

	include, err := filter.Parse(profile.IncludeFilters)
	if err != nil {
		return nil, err
	}
	exclude, err := filter.Parse(profile.ExcludeFilters)
	if err != nil {
		return nil, err
	}

	mode, err := fetch.ParseMode(profile.FetchMode)
	if err != nil {
		return nil, err
	}

	page, err := r.fetchers.ForMode(mode).Fetch(ctx, profile.SourceURL)
	if err != nil {
		return nil, err
	}

	extracted, err := r.extractor.Run(page.FinalURL, page.HTML, spec)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Extracted:      len(extracted.Items),
		DroppedOffHost: extracted.DroppedOffHost,
		DroppedPartial: extracted.DroppedPartial,
	}
	for _, c := range extracted.Items {
		if !filter.Apply(c.Title, include, exclude) {
			preview.FilteredOut++
			continue
		}
		preview.Items = append(preview.Items, database.ItemCandidate{
			Title: c.Title, Link: c.Link, Summary: c.Summary,
		})
	}

	return preview, nil
}
