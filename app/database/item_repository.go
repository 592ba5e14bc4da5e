package database

import (
	"fmt"
	"time"
)

// ItemRepositoryImpl handles database operations for feed items
type ItemRepositoryImpl struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// GetExistingLinks returns the set of links already stored for a profile.
// The refresher uses it to tell an updated feed apart from an unchanged one.
func (r *ItemRepositoryImpl) GetExistingLinks(profileID int64) (map[string]bool, error) {
	rows, err := r.db.Query("SELECT link FROM feed_items WHERE profile_id = ?", profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]bool)
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links[link] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}

	return links, nil
}

// UpsertItems stores extracted candidates in a single transaction and
// returns how many were new. Re-seen links keep their original
// first_seen_at while title and summary are refreshed in place.
func (r *ItemRepositoryImpl) UpsertItems(profileID int64, candidates []ItemCandidate, now time.Time) (int, error) {
	existing, err := r.GetExistingLinks(profileID)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO feed_items (profile_id, title, link, summary, first_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, link) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item upsert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range candidates {
		if _, err := stmt.Exec(profileID, c.Title, c.Link, c.Summary, formatTime(now)); err != nil {
			return 0, fmt.Errorf("failed to upsert item %q: %w", c.Link, err)
		}
		if !existing[c.Link] {
			existing[c.Link] = true
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit item upsert: %w", err)
	}

	return inserted, nil
}

// GetItems returns the newest items for a profile. Items first seen in the
// same refresh keep their page order via the id tiebreak.
func (r *ItemRepositoryImpl) GetItems(profileID int64, limit int) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT id, profile_id, title, link, summary, first_seen_at
		FROM feed_items
		WHERE profile_id = ?
		ORDER BY first_seen_at DESC, id ASC
		LIMIT ?
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var firstSeen string
		err := rows.Scan(&item.ID, &item.ProfileID, &item.Title, &item.Link, &item.Summary, &firstSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		if item.FirstSeenAt, err = time.Parse(TimeLayout, firstSeen); err != nil {
			return nil, fmt.Errorf("failed to parse first_seen_at: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// GetItemCount returns the total number of items for a profile
func (r *ItemRepositoryImpl) GetItemCount(profileID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feed_items WHERE profile_id = ?", profileID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// PurgeItems deletes all stored items for a profile and returns how many
// were removed. The next refresh re-populates from scratch.
func (r *ItemRepositoryImpl) PurgeItems(profileID int64) (int, error) {
	res, err := r.db.Exec("DELETE FROM feed_items WHERE profile_id = ?", profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged items: %w", err)
	}
	return int(n), nil
}
