package api

import "github.com/legendstarrx/scriptsea/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Request DTOs ---

// SignupRequest registers an email and password account.
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"displayName" binding:"max=100"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// GenerateRequest asks for one script.
type GenerateRequest struct {
	Topic    string `json:"topic" binding:"required,max=500"`
	Platform string `json:"platform" binding:"max=50"`
	Tone     string `json:"tone" binding:"max=50"`
	Length   string `json:"length" binding:"max=50"`
	Language string `json:"language" binding:"max=50"`
}

// UpdatePlanRequest is an admin plan override.
type UpdatePlanRequest struct {
	Plan models.Plan `json:"plan" binding:"required,plan"`
}

// SetBannedRequest bans or unbans an account.
type SetBannedRequest struct {
	Banned *bool `json:"banned" binding:"required"`
}

// BanIPRequest adds an address to the deny-list.
type BanIPRequest struct {
	IP     string `json:"ip" binding:"required,ip"`
	Reason string `json:"reason" binding:"max=500"`
}

// --- Response DTOs ---

// CheckIPResponse echoes the caller's address after a passed check.
type CheckIPResponse struct {
	IP string `json:"ip"`
}

// ProfileResponse wraps a profile with its freshness.
type ProfileResponse struct {
	Profile *models.Profile `json:"profile"`
	Offline bool            `json:"offline,omitempty"`
}

// UserListResponse is one page of profiles.
type UserListResponse struct {
	Users      []*models.Profile `json:"users"`
	NextCursor string            `json:"nextCursor,omitempty"`
}
