package domain

import "time"

// FailedSource records a candidate that failed to render or fetch.
type FailedSource struct {
	Key        string        `json:"key"        db:"key"`
	SourceType SourceType    `json:"source_type" db:"source_type"`
	SourceID   string        `json:"source_id"  db:"source_id"`
	Reason     FailureReason `json:"reason"     db:"reason"`
	FailedAt   time.Time     `json:"failed_at"  db:"failed_at"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
// Records without an expiry never expire.
func (f *FailedSource) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

type FailureReason string

const (
	FailureRender FailureReason = "render"
	FailureFetch  FailureReason = "fetch"
)

// SourceKey builds the registry identity for a candidate. Two avatar
// instances configured with the same type and id share one key.
func SourceKey(t SourceType, id string) string {
	return string(t) + ":" + id
}
