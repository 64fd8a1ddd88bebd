package models

import "time"

// BannedIP is a deny-list entry keyed by IP address, independent of any profile.
// An entry carrying UnbannedAt is stale and is removed on the next check.
type BannedIP struct {
	IP         string     `json:"ip" firestore:"-"`
	Reason     string     `json:"reason,omitempty" firestore:"reason"`
	BannedBy   string     `json:"bannedBy,omitempty" firestore:"bannedBy"`
	BannedAt   time.Time  `json:"bannedAt" firestore:"bannedAt"`
	UnbannedAt *time.Time `json:"unbannedAt,omitempty" firestore:"unbannedAt"`
}
