package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ProfileRepositoryImpl handles database operations for profiles
type ProfileRepositoryImpl struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepositoryImpl {
	return &ProfileRepositoryImpl{db: db}
}

const profileColumns = `
	id, token, title, source_url,
	item_selector, title_selector, link_selector, summary_selector,
	include_filters, exclude_filters,
	max_items, refresh_interval_minutes, fetch_mode,
	enabled, status, last_outcome, last_error,
	created_at, enabled_at, last_manual_refresh_at, last_auto_refresh_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var createdAt, updatedAt string
	var enabledAt, manualAt, autoAt sql.NullString

	err := row.Scan(
		&p.ID, &p.Token, &p.Title, &p.SourceURL,
		&p.ItemSelector, &p.TitleSelector, &p.LinkSelector, &p.SummarySelector,
		&p.IncludeFilters, &p.ExcludeFilters,
		&p.MaxItems, &p.RefreshIntervalMinutes, &p.FetchMode,
		&p.Enabled, &p.Status, &p.LastOutcome, &p.LastError,
		&createdAt, &enabledAt, &manualAt, &autoAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.CreatedAt, err = time.Parse(TimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(TimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if p.EnabledAt, err = parseNullTime(enabledAt); err != nil {
		return nil, fmt.Errorf("failed to parse enabled_at: %w", err)
	}
	if p.LastManualRefreshAt, err = parseNullTime(manualAt); err != nil {
		return nil, fmt.Errorf("failed to parse last_manual_refresh_at: %w", err)
	}
	if p.LastAutoRefreshAt, err = parseNullTime(autoAt); err != nil {
		return nil, fmt.Errorf("failed to parse last_auto_refresh_at: %w", err)
	}

	return &p, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(TimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// CreateProfile inserts a new profile, generating a token when none is set.
// CreatedAt and UpdatedAt are filled in on the passed struct.
func (r *ProfileRepositoryImpl) CreateProfile(p *Profile) error {
	if p.Token == "" {
		token, err := NewToken()
		if err != nil {
			return err
		}
		p.Token = token
	}

	now := time.Now().UTC().Truncate(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	res, err := r.db.Exec(`
		INSERT INTO profiles (
			token, title, source_url,
			item_selector, title_selector, link_selector, summary_selector,
			include_filters, exclude_filters,
			max_items, refresh_interval_minutes, fetch_mode,
			enabled, status, last_outcome, last_error,
			created_at, enabled_at, last_manual_refresh_at, last_auto_refresh_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Token, p.Title, p.SourceURL,
		p.ItemSelector, p.TitleSelector, p.LinkSelector, p.SummarySelector,
		p.IncludeFilters, p.ExcludeFilters,
		p.MaxItems, p.RefreshIntervalMinutes, p.FetchMode,
		p.Enabled, p.Status, p.LastOutcome, p.LastError,
		formatTime(p.CreatedAt), formatNullTime(p.EnabledAt),
		formatNullTime(p.LastManualRefreshAt), formatNullTime(p.LastAutoRefreshAt),
		formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get profile id: %w", err)
	}

	return nil
}

// UpdateProfile persists configuration changes. Lifecycle columns (status,
// outcome, refresh timestamps) are managed by the dedicated methods below.
func (r *ProfileRepositoryImpl) UpdateProfile(p *Profile) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := r.db.Exec(`
		UPDATE profiles
		SET title = ?, source_url = ?,
		    item_selector = ?, title_selector = ?, link_selector = ?, summary_selector = ?,
		    include_filters = ?, exclude_filters = ?,
		    max_items = ?, refresh_interval_minutes = ?, fetch_mode = ?,
		    updated_at = ?
		WHERE id = ?
	`, p.Title, p.SourceURL,
		p.ItemSelector, p.TitleSelector, p.LinkSelector, p.SummarySelector,
		p.IncludeFilters, p.ExcludeFilters,
		p.MaxItems, p.RefreshIntervalMinutes, p.FetchMode,
		formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

// DeleteProfile removes a profile; its items go with it via the foreign key.
func (r *ProfileRepositoryImpl) DeleteProfile(id int64) error {
	res, err := r.db.Exec("DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetProfile retrieves a profile by its numeric ID
func (r *ProfileRepositoryImpl) GetProfile(id int64) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		"SELECT"+profileColumns+" FROM profiles WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetProfileByToken retrieves a profile by its public feed token
func (r *ProfileRepositoryImpl) GetProfileByToken(token string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		"SELECT"+profileColumns+" FROM profiles WHERE token = ?", token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by token: %w", err)
	}
	return p, nil
}

// GetProfiles returns all profiles with their item counts, newest first
func (r *ProfileRepositoryImpl) GetProfiles() ([]Profile, error) {
	rows, err := r.db.Query(`
		SELECT ` + profileColumns + `,
		       (SELECT COUNT(*) FROM feed_items WHERE feed_items.profile_id = profiles.id) AS item_count
		FROM profiles
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		var createdAt, updatedAt string
		var enabledAt, manualAt, autoAt sql.NullString
		err := rows.Scan(
			&p.ID, &p.Token, &p.Title, &p.SourceURL,
			&p.ItemSelector, &p.TitleSelector, &p.LinkSelector, &p.SummarySelector,
			&p.IncludeFilters, &p.ExcludeFilters,
			&p.MaxItems, &p.RefreshIntervalMinutes, &p.FetchMode,
			&p.Enabled, &p.Status, &p.LastOutcome, &p.LastError,
			&createdAt, &enabledAt, &manualAt, &autoAt, &updatedAt,
			&p.ItemCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		if p.CreatedAt, err = time.Parse(TimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(TimeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		if p.EnabledAt, err = parseNullTime(enabledAt); err != nil {
			return nil, fmt.Errorf("failed to parse enabled_at: %w", err)
		}
		if p.LastManualRefreshAt, err = parseNullTime(manualAt); err != nil {
			return nil, fmt.Errorf("failed to parse last_manual_refresh_at: %w", err)
		}
		if p.LastAutoRefreshAt, err = parseNullTime(autoAt); err != nil {
			return nil, fmt.Errorf("failed to parse last_auto_refresh_at: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return profiles, nil
}

// GetEnabledProfiles returns enabled profiles for the scheduler pass
func (r *ProfileRepositoryImpl) GetEnabledProfiles() ([]Profile, error) {
	rows, err := r.db.Query(
		"SELECT" + profileColumns + " FROM profiles WHERE enabled = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return profiles, nil
}

// SetProfileEnabled flips the enabled flag. Enabling stamps enabled_at so
// the automatic schedule restarts from that moment; disabling moves the
// profile into the disabled state.
func (r *ProfileRepositoryImpl) SetProfileEnabled(id int64, enabled bool, now time.Time) error {
	var err error
	if enabled {
		_, err = r.db.Exec(`
			UPDATE profiles
			SET enabled = 1, status = ?, enabled_at = ?, updated_at = ?
			WHERE id = ?
		`, StatusIdle, formatTime(now), formatTime(now), id)
	} else {
		_, err = r.db.Exec(`
			UPDATE profiles
			SET enabled = 0, status = ?, updated_at = ?
			WHERE id = ?
		`, StatusDisabled, formatTime(now), id)
	}
	if err != nil {
		return fmt.Errorf("failed to set profile enabled status: %w", err)
	}
	return nil
}

// UpdateProfileStatus sets the lifecycle state column
func (r *ProfileRepositoryImpl) UpdateProfileStatus(id int64, status string) error {
	_, err := r.db.Exec(`
		UPDATE profiles
		SET status = ?, updated_at = ?
		WHERE id = ?
	`, status, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update profile status: %w", err)
	}
	return nil
}

// RecordRefreshSuccess stamps the refresh timestamp for the trigger kind,
// clears the error, and returns the profile to the idle state.
func (r *ProfileRepositoryImpl) RecordRefreshSuccess(id int64, kind RefreshKind, outcome string, now time.Time) error {
	column := "last_auto_refresh_at"
	if kind == RefreshManual {
		column = "last_manual_refresh_at"
	}

	_, err := r.db.Exec(`
		UPDATE profiles
		SET `+column+` = ?, status = ?, last_outcome = ?, last_error = '', updated_at = ?
		WHERE id = ?
	`, formatTime(now), StatusIdle, outcome, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to record refresh success: %w", err)
	}
	return nil
}

// RecordRefreshFailure stores the failure outcome without touching any
// refresh timestamp, so the profile stays due and is retried on the next
// scheduler pass.
func (r *ProfileRepositoryImpl) RecordRefreshFailure(id int64, outcome string, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE profiles
		SET status = ?, last_outcome = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, StatusIdle, outcome, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to record refresh failure: %w", err)
	}
	return nil
}

// GetProfileCount returns the total number of profiles
func (r *ProfileRepositoryImpl) GetProfileCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM profiles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get profile count: %w", err)
	}
	return count, nil
}

// GetEnabledProfileCount returns the count of enabled profiles
func (r *ProfileRepositoryImpl) GetEnabledProfileCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM profiles WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get enabled profile count: %w", err)
	}
	return count, nil
}
