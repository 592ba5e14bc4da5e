package provision

import (
	"log/slog"
	"time"

	"github.com/nightfeed/nightfeed/app/database"
)

// Provisioner syncs seed files into the profiles table. Files are matched
// to existing profiles by token; configuration columns are overwritten
// while lifecycle state and stored items are left untouched.
type Provisioner struct {
	loader      *Loader
	profileRepo database.ProfileRepository
}

func NewProvisioner(profilesDir string, profileRepo database.ProfileRepository) *Provisioner {
	return &Provisioner{
		loader:      NewLoader(profilesDir),
		profileRepo: profileRepo,
	}
}

// Run loads all seed files and upserts them, returning how many were
// synced. Invalid files are logged and skipped.
func (p *Provisioner) Run() (int, error) {
	configs, failures, err := p.loader.LoadAll()
	if err != nil {
		return 0, err
	}

	for file, ferr := range failures {
		slog.Error("Skipping invalid profile seed file", "file", file, "error", ferr)
	}

	synced := 0
	for file, config := range configs {
		if err := p.sync(config); err != nil {
			slog.Error("Failed to sync profile seed file", "file", file, "error", err)
			continue
		}
		synced++
		slog.Debug("Profile seed file synced", "file", file, "token", config.Profile.Token)
	}

	return synced, nil
}

func (p *Provisioner) sync(config *ProfileConfig) error {
	existing, err := p.profileRepo.GetProfileByToken(config.Profile.Token)
	if err != nil {
		return err
	}

	if existing == nil {
		profile := &database.Profile{
			Token:                  config.Profile.Token,
			Title:                  config.Profile.Title,
			SourceURL:              config.Profile.SourceURL,
			ItemSelector:           config.Selectors.Item,
			TitleSelector:          config.Selectors.Title,
			LinkSelector:           config.Selectors.Link,
			SummarySelector:        config.Selectors.Summary,
			IncludeFilters:         config.Filters.Include,
			ExcludeFilters:         config.Filters.Exclude,
			MaxItems:               config.Settings.MaxItems,
			RefreshIntervalMinutes: config.refreshIntervalMinutes(),
			FetchMode:              config.Profile.FetchMode,
			Enabled:                config.enabled(),
			Status:                 database.StatusIdle,
		}
		if !profile.Enabled {
			profile.Status = database.StatusDisabled
		}
		return p.profileRepo.CreateProfile(profile)
	}

	existing.Title = config.Profile.Title
	existing.SourceURL = config.Profile.SourceURL
	existing.ItemSelector = config.Selectors.Item
	existing.TitleSelector = config.Selectors.Title
	existing.LinkSelector = config.Selectors.Link
	existing.SummarySelector = config.Selectors.Summary
	existing.IncludeFilters = config.Filters.Include
	existing.ExcludeFilters = config.Filters.Exclude
	existing.MaxItems = config.Settings.MaxItems
	existing.RefreshIntervalMinutes = config.refreshIntervalMinutes()
	existing.FetchMode = config.Profile.FetchMode

	if err := p.profileRepo.UpdateProfile(existing); err != nil {
		return err
	}

	if existing.Enabled != config.enabled() {
		return p.profileRepo.SetProfileEnabled(existing.ID, config.enabled(), time.Now().UTC())
	}

	return nil
}
