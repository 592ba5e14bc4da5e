package database

import (
	"time"
)

type ProfileRepository interface {
	GetProfile(id int64) (*Profile, error)
	GetProfileByToken(token string) (*Profile, error)
	GetProfiles() ([]Profile, error)
	GetEnabledProfiles() ([]Profile, error)
	GetProfileCount() (int, error)
	GetEnabledProfileCount() (int, error)

	CreateProfile(p *Profile) error
	UpdateProfile(p *Profile) error
	DeleteProfile(id int64) error

	SetProfileEnabled(id int64, enabled bool, now time.Time) error
	UpdateProfileStatus(id int64, status string) error
	RecordRefreshSuccess(id int64, kind RefreshKind, outcome string, now time.Time) error
	RecordRefreshFailure(id int64, outcome string, errMsg string) error
}

type ItemRepository interface {
	GetItems(profileID int64, limit int) ([]Item, error)
	GetItemCount(profileID int64) (int, error)
	GetExistingLinks(profileID int64) (map[string]bool, error)

	UpsertItems(profileID int64, candidates []ItemCandidate, now time.Time) (int, error)
	PurgeItems(profileID int64) (int, error)
}
