package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:            "./data/test.db",
		ProfilesDir:       "./profiles",
		Port:              "8080",
		BaseUrl:           "https://feeds.example.com",
		WorkerCount:       5,
		SchedulerInterval: 30,
		FetchTimeout:      15,
		APIAccessKey:      "test-key",
		UserAgent:         "Test Agent",
		Timezone:          "UTC",
		Debug:             true,
		Version:           "test-version",
	}

	if cfg.DBPath != "./data/test.db" {
		t.Errorf("Expected DB path './data/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.BaseUrl != "https://feeds.example.com" {
		t.Errorf("Expected base URL 'https://feeds.example.com', got '%s'", cfg.BaseUrl)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerInterval != 30 {
		t.Errorf("Expected scheduler interval 30, got %d", cfg.SchedulerInterval)
	}
	if cfg.FetchTimeout != 15 {
		t.Errorf("Expected fetch timeout 15, got %d", cfg.FetchTimeout)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestSetForTesting(t *testing.T) {
	SetForTesting(&Cfg{Port: "9999"})
	if Get().Port != "9999" {
		t.Errorf("Expected injected config, got port '%s'", Get().Port)
	}
}
