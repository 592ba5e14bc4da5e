package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"NIGHTFEED_DB_PATH" default:"./data/nightfeed.db" description:"Path to the SQLite database file"`

	// Application configuration
	ProfilesDir       string `long:"profiles-dir" env:"NIGHTFEED_PROFILES_DIR" description:"Directory containing profile seed files (optional)"`
	Port              string `long:"port" env:"NIGHTFEED_PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"NIGHTFEED_BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"NIGHTFEED_WORKER_COUNT" default:"5" description:"Number of background workers for profile refreshes"`
	SchedulerInterval int    `long:"scheduler-interval" env:"NIGHTFEED_SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"NIGHTFEED_FETCH_TIMEOUT" default:"15" description:"Source page fetch timeout in seconds"`
	APIAccessKey      string `long:"api-key" env:"NIGHTFEED_API_ACCESS_KEY" description:"API access key for management endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"NIGHTFEED_USER_AGENT" default:"nightfeed/0.2" description:"User agent string for source page requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"NIGHTFEED_DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		ProfilesDir:       raw.ProfilesDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		FetchTimeout:      raw.FetchTimeout,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting installs a configuration without parsing flags.
func SetForTesting(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
