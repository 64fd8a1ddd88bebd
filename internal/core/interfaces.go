package core

import (
	"context"

	"github.com/legendstarrx/scriptsea/internal/models"
)

// Principal is the identity behind a verified session token.
type Principal struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"` // confirmed by the identity provider
	Provider      string `json:"provider"`      // sign-in provider, e.g. "password" or "google.com"
}

// RequiresVerification reports whether the account must confirm its email
// through a verification token. Third-party sign-ins are exempt.
func (p *Principal) RequiresVerification() bool {
	return p.Provider == models.ProviderPassword
}

// TokenVerifier turns a bearer token into a Principal. Revoked tokens must fail.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Principal, error)
}

// IdentityProvider is the managed identity service holding credentials and sessions.
type IdentityProvider interface {
	TokenVerifier
	CreateAccount(ctx context.Context, email, password, displayName string) (*Principal, error)
	DeleteAccount(ctx context.Context, uid string) error
	// SignOut revokes every refresh token of uid so outstanding sessions end.
	SignOut(ctx context.Context, uid string) error
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// AccountNotifier delivers account emails.
type AccountNotifier interface {
	SendVerification(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}

// ScriptGenerator produces script text. Prompt construction lives behind it.
type ScriptGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// EventPublisher publishes domain events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}
