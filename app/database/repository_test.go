package database

import (
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func testProfile() *Profile {
	return &Profile{
		Title:                  "Example News",
		SourceURL:              "https://news.example.com/latest",
		ItemSelector:           "div.entry",
		TitleSelector:          "h2",
		LinkSelector:           "a",
		SummarySelector:        "p.teaser",
		MaxItems:               25,
		RefreshIntervalMinutes: 60,
		FetchMode:              FetchModeHTTP,
		Enabled:                true,
		Status:                 StatusIdle,
	}
}

func TestCreateProfile_GeneratesToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)

	p := testProfile()
	if err := repo.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if p.ID == 0 {
		t.Error("Expected non-zero profile ID")
	}
	if len(p.Token) != 24 {
		t.Errorf("Expected 24 character token, got %q (%d)", p.Token, len(p.Token))
	}
	if p.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	other := testProfile()
	if err := repo.CreateProfile(other); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if other.Token == p.Token {
		t.Error("Expected distinct tokens for distinct profiles")
	}
}

func TestGetProfileByToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)

	p := testProfile()
	if err := repo.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	got, err := repo.GetProfileByToken(p.Token)
	if err != nil {
		t.Fatalf("GetProfileByToken failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected profile, got nil")
	}
	if got.Title != p.Title || got.SourceURL != p.SourceURL {
		t.Errorf("Unexpected profile: %+v", got)
	}

	missing, err := repo.GetProfileByToken("does-not-exist")
	if err != nil {
		t.Fatalf("GetProfileByToken failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown token, got %+v", missing)
	}
}

func TestUpdateProfile_PreservesLifecycleColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)

	p := testProfile()
	if err := repo.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.RecordRefreshSuccess(p.ID, RefreshManual, "updated", now); err != nil {
		t.Fatalf("RecordRefreshSuccess failed: %v", err)
	}

	p.Title = "Renamed"
	p.RefreshIntervalMinutes = 15
	if err := repo.UpdateProfile(p); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	got, err := repo.GetProfile(p.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Title != "Renamed" || got.RefreshIntervalMinutes != 15 {
		t.Errorf("Update not applied: %+v", got)
	}
	if got.LastManualRefreshAt == nil || !got.LastManualRefreshAt.Equal(now) {
		t.Errorf("Expected manual refresh timestamp %v preserved, got %v", now, got.LastManualRefreshAt)
	}
	if got.LastOutcome != "updated" {
		t.Errorf("Expected outcome preserved, got %q", got.LastOutcome)
	}
}

func TestSetProfileEnabled(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)

	p := testProfile()
	if err := repo.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.SetProfileEnabled(p.ID, false, now); err != nil {
		t.Fatalf("SetProfileEnabled failed: %v", err)
	}

	got, _ := repo.GetProfile(p.ID)
	if got.Enabled {
		t.Error("Expected profile disabled")
	}
	if got.Status != StatusDisabled {
		t.Errorf("Expected status %q, got %q", StatusDisabled, got.Status)
	}

	later := now.Add(time.Minute)
	if err := repo.SetProfileEnabled(p.ID, true, later); err != nil {
		t.Fatalf("SetProfileEnabled failed: %v", err)
	}

	got, _ = repo.GetProfile(p.ID)
	if !got.Enabled || got.Status != StatusIdle {
		t.Errorf("Expected idle enabled profile, got enabled=%v status=%q", got.Enabled, got.Status)
	}
	if got.EnabledAt == nil || !got.EnabledAt.Equal(later) {
		t.Errorf("Expected enabled_at %v, got %v", later, got.EnabledAt)
	}
}

func TestRecordRefreshFailure_KeepsTimestamps(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)

	p := testProfile()
	if err := repo.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if err := repo.RecordRefreshFailure(p.ID, "fetch_failed", "status 503"); err != nil {
		t.Fatalf("RecordRefreshFailure failed: %v", err)
	}

	got, _ := repo.GetProfile(p.ID)
	if got.LastAutoRefreshAt != nil || got.LastManualRefreshAt != nil {
		t.Error("Failure must not advance refresh timestamps")
	}
	if got.LastOutcome != "fetch_failed" || got.LastError != "status 503" {
		t.Errorf("Unexpected outcome %q / error %q", got.LastOutcome, got.LastError)
	}
	if got.Status != StatusIdle {
		t.Errorf("Expected status back to idle, got %q", got.Status)
	}
}

func TestProfileDue(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := &Profile{Enabled: true, RefreshIntervalMinutes: 60, CreatedAt: base}

	if p.Due(base.Add(30 * time.Minute)) {
		t.Error("Profile should not be due before the interval elapses")
	}
	if !p.Due(base.Add(60 * time.Minute)) {
		t.Error("Profile should be due exactly at the interval boundary")
	}

	// A manual refresh pushes the automatic schedule back.
	manual := base.Add(50 * time.Minute)
	p.LastManualRefreshAt = &manual
	if p.Due(base.Add(90 * time.Minute)) {
		t.Error("Manual refresh should re-arm the interval")
	}
	if !p.Due(manual.Add(60 * time.Minute)) {
		t.Error("Profile should be due one interval after the manual refresh")
	}

	// Re-enabling restarts the schedule from the enable instant.
	enabled := base.Add(3 * time.Hour)
	p.EnabledAt = &enabled
	if p.Due(enabled.Add(59 * time.Minute)) {
		t.Error("Enable timestamp should anchor the schedule")
	}

	p.Enabled = false
	if p.Due(enabled.Add(2 * time.Hour)) {
		t.Error("Disabled profile must never be due")
	}

	manualOnly := &Profile{Enabled: true, RefreshIntervalMinutes: 0, CreatedAt: base}
	if manualOnly.NextDue() != nil {
		t.Error("Manual-only profile should have no next due time")
	}
	if manualOnly.Due(base.Add(24 * time.Hour)) {
		t.Error("Manual-only profile must never be auto-due")
	}
}

func TestUpsertItems_PreservesFirstSeen(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db)
	items := NewItemRepository(db)

	p := testProfile()
	if err := profiles.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inserted, err := items.UpsertItems(p.ID, []ItemCandidate{
		{Title: "One", Link: "https://news.example.com/1", Summary: "first"},
		{Title: "Two", Link: "https://news.example.com/2"},
	}, first)
	if err != nil {
		t.Fatalf("UpsertItems failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 new items, got %d", inserted)
	}

	second := first.Add(time.Hour)
	inserted, err = items.UpsertItems(p.ID, []ItemCandidate{
		{Title: "One (edited)", Link: "https://news.example.com/1", Summary: "revised"},
		{Title: "Three", Link: "https://news.example.com/3"},
	}, second)
	if err != nil {
		t.Fatalf("UpsertItems failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("Expected 1 new item on second pass, got %d", inserted)
	}

	got, err := items.GetItems(p.ID, 10)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(got))
	}

	// Newest first; the re-seen item keeps its original first_seen_at but
	// carries the refreshed title and summary.
	if got[0].Link != "https://news.example.com/3" {
		t.Errorf("Expected newest item first, got %q", got[0].Link)
	}
	for _, item := range got {
		if item.Link != "https://news.example.com/1" {
			continue
		}
		if !item.FirstSeenAt.Equal(first) {
			t.Errorf("Expected first_seen_at %v preserved, got %v", first, item.FirstSeenAt)
		}
		if item.Title != "One (edited)" || item.Summary != "revised" {
			t.Errorf("Expected refreshed metadata, got title=%q summary=%q", item.Title, item.Summary)
		}
	}
}

func TestGetItems_OrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db)
	items := NewItemRepository(db)

	p := testProfile()
	if err := profiles.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	seen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	batch := []ItemCandidate{
		{Title: "A", Link: "https://news.example.com/a"},
		{Title: "B", Link: "https://news.example.com/b"},
		{Title: "C", Link: "https://news.example.com/c"},
	}
	if _, err := items.UpsertItems(p.ID, batch, seen); err != nil {
		t.Fatalf("UpsertItems failed: %v", err)
	}

	got, err := items.GetItems(p.ID, 2)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected limit of 2 items, got %d", len(got))
	}
	// Same batch keeps page order via the id tiebreak.
	if got[0].Title != "A" || got[1].Title != "B" {
		t.Errorf("Expected page order A, B; got %q, %q", got[0].Title, got[1].Title)
	}
}

func TestPurgeItems(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db)
	items := NewItemRepository(db)

	p := testProfile()
	if err := profiles.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	seen := time.Now().UTC().Truncate(time.Second)
	if _, err := items.UpsertItems(p.ID, []ItemCandidate{
		{Title: "A", Link: "https://news.example.com/a"},
		{Title: "B", Link: "https://news.example.com/b"},
	}, seen); err != nil {
		t.Fatalf("UpsertItems failed: %v", err)
	}

	purged, err := items.PurgeItems(p.ID)
	if err != nil {
		t.Fatalf("PurgeItems failed: %v", err)
	}
	if purged != 2 {
		t.Errorf("Expected 2 purged items, got %d", purged)
	}

	count, err := items.GetItemCount(p.ID)
	if err != nil {
		t.Fatalf("GetItemCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty item table, got %d", count)
	}
}

func TestDeleteProfile_CascadesItems(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db)
	items := NewItemRepository(db)

	p := testProfile()
	if err := profiles.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if _, err := items.UpsertItems(p.ID, []ItemCandidate{
		{Title: "A", Link: "https://news.example.com/a"},
	}, time.Now().UTC()); err != nil {
		t.Fatalf("UpsertItems failed: %v", err)
	}

	if err := profiles.DeleteProfile(p.ID); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}

	count, err := items.GetItemCount(p.ID)
	if err != nil {
		t.Fatalf("GetItemCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected cascade delete of items, got %d remaining", count)
	}
}
