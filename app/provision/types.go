package provision

// ProfileConfig is the on-disk seed format for a profile. Files are synced
// into the database at startup, keyed by token, so a deployment can carry
// its profiles in version control.
type ProfileConfig struct {
	Profile struct {
		Token     string `yaml:"token"`
		Title     string `yaml:"title"`
		SourceURL string `yaml:"source_url"`
		FetchMode string `yaml:"fetch_mode"`
	} `yaml:"profile"`

	Selectors struct {
		Item    string `yaml:"item"`
		Title   string `yaml:"title"`
		Link    string `yaml:"link"`
		Summary string `yaml:"summary"`
	} `yaml:"selectors"`

	Filters struct {
		Include string `yaml:"include"`
		Exclude string `yaml:"exclude"`
	} `yaml:"filters"`

	Settings struct {
		MaxItems               int   `yaml:"max_items"`
		RefreshIntervalMinutes *int  `yaml:"refresh_interval_minutes"`
		Enabled                *bool `yaml:"enabled"`
	} `yaml:"settings"`
}

func (c *ProfileConfig) enabled() bool {
	return c.Settings.Enabled == nil || *c.Settings.Enabled
}

func (c *ProfileConfig) refreshIntervalMinutes() int {
	if c.Settings.RefreshIntervalMinutes == nil {
		return 60
	}
	return *c.Settings.RefreshIntervalMinutes
}
