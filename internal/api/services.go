package api

import (
	"context"
	"net/http"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// AuthService is the part of core.AuthService the handlers use.
type AuthService interface {
	CheckIP(ctx context.Context, ip string) error
	Signup(ctx context.Context, in core.SignupInput) (*models.Profile, error)
	Login(ctx context.Context, principal *core.Principal, ip string) (*models.Profile, bool, error)
	Profile(ctx context.Context, principal *core.Principal) (*models.Profile, bool, error)
	RecordIP(ctx context.Context, uid, ip string) (*models.Profile, error)
	ResendVerification(ctx context.Context, email string) error
	PasswordReset(ctx context.Context, email string) error
}

// VerificationService consumes email verification tokens.
type VerificationService interface {
	Consume(ctx context.Context, token string) (*models.Profile, error)
}

// GenerationService runs the generation checkpoint.
type GenerationService interface {
	Generate(ctx context.Context, principal *core.Principal, ip string, req core.GenerationRequest) (*core.GenerationResult, error)
}

// PaymentService applies gateway webhooks.
type PaymentService interface {
	HandleWebhook(ctx context.Context, v core.WebhookVerifier, payload []byte, header http.Header) error
}

// AdminService is the admin surface.
type AdminService interface {
	ListUsers(ctx context.Context, limit int, cursor string) ([]*models.Profile, string, error)
	UpdatePlan(ctx context.Context, actor, uid string, plan models.Plan) (*models.Profile, error)
	SetBanned(ctx context.Context, actor, uid string, banned bool) (*models.Profile, error)
	DeleteUser(ctx context.Context, actor, uid string) error
	RevokeSessions(ctx context.Context, actor, uid string) error
	BanIP(ctx context.Context, actor, ip, reason string) (*models.BannedIP, error)
	UnbanIP(ctx context.Context, actor, ip string) error
	ListBannedIPs(ctx context.Context) ([]*models.BannedIP, error)
	ListPayments(ctx context.Context, limit int) ([]*models.PaymentRecord, error)
}

// SessionRunner is one live session; *core.SessionSynchronizer implements it.
type SessionRunner interface {
	Run(ctx context.Context, changes <-chan *core.Principal)
	Teardown()
}

// SessionFactory starts a session that reports every state to publish.
type SessionFactory func(publish func(core.AccountState)) SessionRunner

// NewSessionFactory builds sessions on the shared synchronizer dependencies.
func NewSessionFactory(deps core.SessionDeps) SessionFactory {
	return func(publish func(core.AccountState)) SessionRunner {
		return core.NewSessionSynchronizer(deps, publish)
	}
}

var (
	_ AuthService         = (*core.AuthService)(nil)
	_ VerificationService = (*core.VerificationService)(nil)
	_ GenerationService   = (*core.GenerationService)(nil)
	_ PaymentService      = (*core.PaymentService)(nil)
	_ AdminService        = (*core.AdminService)(nil)
)
