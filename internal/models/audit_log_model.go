package models

import "time"

// Audit actions.
const (
	AuditActionPlanOverride   = "PLAN_OVERRIDE"
	AuditActionAccountBan     = "ACCOUNT_BAN"
	AuditActionAccountUnban   = "ACCOUNT_UNBAN"
	AuditActionAccountDelete  = "ACCOUNT_DELETE"
	AuditActionIPBan          = "IP_BAN"
	AuditActionIPUnban        = "IP_UNBAN"
	AuditActionRevokeSessions = "REVOKE_SESSIONS"
	AuditActionForcedSignOut  = "FORCED_SIGN_OUT"
)

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID     string                 `json:"userId" firestore:"userId"` // who performed the action
	Action     string                 `json:"action" firestore:"action"`
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"` // USER or IP
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
