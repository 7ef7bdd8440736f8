package normalize

import "strings"

// Canonical status values. Anything outside the keyword buckets passes through
// title-cased.
const (
	StatusPending   = "Pending"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusWithdrawn = "Withdrawn"
	StatusSuspended = "Suspended"
)

// statusBuckets are checked in order; earlier buckets win when an input
// matches keywords from more than one (e.g. "processing" must land on
// Pending).
var statusBuckets = []struct {
	status   string
	keywords []string
}{
	{StatusPending, []string{"pending", "in process", "in review", "under review", "draft", "application received", "processing"}},
	{StatusApproved, []string{"approved", "issued", "granted", "active"}},
	{StatusRejected, []string{"rejected", "denied", "refused"}},
	{StatusWithdrawn, []string{"withdrawn", "cancelled", "abandoned"}},
	{StatusSuspended, []string{"suspended"}},
}

// Status maps a raw status string onto the canonical vocabulary by
// case-insensitive substring matching. Empty input maps to Pending; unmatched
// input passes through title-cased.
func Status(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatusPending
	}
	lowered := strings.ToLower(trimmed)
	for _, bucket := range statusBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				return bucket.status
			}
		}
	}
	return TitleCase(trimmed)
}
