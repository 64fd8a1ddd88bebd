package models

import "time"

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Fixed script quotas per plan.
const (
	FreeScriptsLimit = 3
	ProScriptsLimit  = 100
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// Authentication providers as reported by Firebase in the sign_in_provider claim.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Profile is the per-account document stored in the users collection.
// The document ID is the Firebase Auth UID.
type Profile struct {
	ID                      string     `json:"id" firestore:"-"`
	Email                   string     `json:"email" firestore:"email"`
	DisplayName             string     `json:"displayName,omitempty" firestore:"displayName"`
	AuthProvider            string     `json:"authProvider,omitempty" firestore:"authProvider"`
	Plan                    Plan       `json:"plan" firestore:"plan"`
	ScriptsRemaining        int        `json:"scriptsRemaining" firestore:"scriptsRemaining"`
	ScriptsLimit            int        `json:"scriptsLimit" firestore:"scriptsLimit"`
	IsAdmin                 bool       `json:"isAdmin" firestore:"isAdmin"` // recomputed on every load
	IsBanned                bool       `json:"isBanned" firestore:"isBanned"`
	EmailVerified           bool       `json:"emailVerified" firestore:"emailVerified"`
	VerificationToken       *string    `json:"-" firestore:"verificationToken"` // null once consumed
	VerificationTokenExpiry *time.Time `json:"-" firestore:"verificationTokenExpiry"`
	IPAddress               string     `json:"ipAddress,omitempty" firestore:"ipAddress"`
	LastLoginIP             string     `json:"lastLoginIp,omitempty" firestore:"lastLoginIp"`
	CreatedAt               time.Time  `json:"createdAt" firestore:"createdAt"`
	LastLogin               time.Time  `json:"lastLogin" firestore:"lastLogin"`
	SubscriptionEnd         *time.Time `json:"subscriptionEnd,omitempty" firestore:"subscriptionEnd"`
	SubscriptionID          string     `json:"subscriptionId,omitempty" firestore:"subscriptionId"`
	UpdatedAt               time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// PendingToken returns the outstanding verification token, or "" when none is.
func (p *Profile) PendingToken() string {
	if p == nil || p.VerificationToken == nil {
		return ""
	}
	return *p.VerificationToken
}

// Clone returns a deep copy so snapshots handed to callers cannot alias store state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.VerificationToken != nil {
		tok := *p.VerificationToken
		c.VerificationToken = &tok
	}
	if p.VerificationTokenExpiry != nil {
		t := *p.VerificationTokenExpiry
		c.VerificationTokenExpiry = &t
	}
	if p.SubscriptionEnd != nil {
		t := *p.SubscriptionEnd
		c.SubscriptionEnd = &t
	}
	return &c
}
