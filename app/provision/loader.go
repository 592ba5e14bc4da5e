package provision

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nightfeed/nightfeed/app/extract"
	"github.com/nightfeed/nightfeed/app/fetch"
	"github.com/nightfeed/nightfeed/app/filter"
)

// Loader reads and validates profile seed files
type Loader struct {
	profilesDir string
}

func NewLoader(profilesDir string) *Loader {
	return &Loader{profilesDir: profilesDir}
}

// LoadAll loads every YAML seed file from the profiles directory. A
// missing directory is not an error; an invalid file is reported per
// file so one broken seed does not block the rest.
func (l *Loader) LoadAll() (map[string]*ProfileConfig, map[string]error, error) {
	configs := make(map[string]*ProfileConfig)
	failures := make(map[string]error)

	if _, err := os.Stat(l.profilesDir); os.IsNotExist(err) {
		return configs, failures, nil
	}

	files, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yml"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			failures[file] = err
			continue
		}
		if err := l.validate(config); err != nil {
			failures[file] = err
			continue
		}
		configs[file] = config
	}

	return configs, failures, nil
}

func (l *Loader) loadFile(path string) (*ProfileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config ProfileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

func (l *Loader) setDefaults(config *ProfileConfig) {
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 25
	}
	if config.Profile.FetchMode == "" {
		config.Profile.FetchMode = string(fetch.ModeHTTP)
	}
}

// validate runs the same checks the management API applies when a profile
// is saved, so a seed file can never smuggle in configuration a live
// request would reject.
func (l *Loader) validate(config *ProfileConfig) error {
	if config.Profile.Token == "" {
		return fmt.Errorf("profile token is required for idempotent syncing")
	}
	if config.Profile.Title == "" {
		return fmt.Errorf("profile title is required")
	}

	u, err := url.Parse(config.Profile.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source_url must be an absolute http or https URL")
	}

	if _, err := fetch.ParseMode(config.Profile.FetchMode); err != nil {
		return err
	}

	if _, err := extract.NewSpec(config.Selectors.Item, config.Selectors.Title,
		config.Selectors.Link, config.Selectors.Summary); err != nil {
		return err
	}

	if _, err := filter.Parse(config.Filters.Include); err != nil {
		return fmt.Errorf("invalid include filters: %w", err)
	}
	if _, err := filter.Parse(config.Filters.Exclude); err != nil {
		return fmt.Errorf("invalid exclude filters: %w", err)
	}

	if config.Settings.MaxItems < 1 {
		return fmt.Errorf("max_items must be positive")
	}
	if config.refreshIntervalMinutes() < 0 {
		return fmt.Errorf("refresh_interval_minutes must be zero or positive")
	}

	return nil
}
