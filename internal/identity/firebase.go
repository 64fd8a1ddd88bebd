// Package identity adapts Firebase Authentication to the core identity contracts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// AuthClient is the subset of *auth.Client the provider uses.
type AuthClient interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// DefaultTimeout bounds each Firebase Auth call unless WithTimeout says otherwise.
const DefaultTimeout = 8 * time.Second

// FirebaseProvider implements core.IdentityProvider on Firebase Auth.
type FirebaseProvider struct {
	client  AuthClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewFirebaseProvider creates a FirebaseProvider.
func NewFirebaseProvider(client AuthClient, logger *zap.Logger) *FirebaseProvider {
	return &FirebaseProvider{client: client, timeout: DefaultTimeout, logger: logger.Named("identity")}
}

// WithTimeout sets the per-call deadline. Non-positive values are ignored.
func (p *FirebaseProvider) WithTimeout(d time.Duration) *FirebaseProvider {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// call runs fn under the provider deadline. A call cut off by that deadline
// is reported as core.ErrOffline so callers can fall back or ask for a retry.
func (p *FirebaseProvider) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := fn(cctx)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn("identity provider timed out", zap.String("op", op), zap.Duration("timeout", p.timeout))
		return fmt.Errorf("%s: %w: %v", op, core.ErrOffline, err)
	}
	return err
}

// Verify checks the ID token signature, expiry and revocation. A timeout is
// core.ErrOffline; any other failure is reported as core.ErrUnauthenticated
// and the cause is only logged.
func (p *FirebaseProvider) Verify(ctx context.Context, idToken string) (*core.Principal, error) {
	var token *auth.Token
	err := p.call(ctx, "verify token", func(ctx context.Context) (err error) {
		token, err = p.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
		return err
	})
	if err != nil {
		if errors.Is(err, core.ErrOffline) {
			return nil, err
		}
		switch {
		case auth.IsIDTokenRevoked(err):
			p.logger.Info("revoked id token rejected")
		case auth.IsUserDisabled(err):
			p.logger.Info("disabled user rejected")
		default:
			p.logger.Debug("id token rejected", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	return principalFromToken(token), nil
}

func principalFromToken(token *auth.Token) *core.Principal {
	principal := &core.Principal{ID: token.UID, Provider: token.Firebase.SignInProvider}
	if email, ok := token.Claims["email"].(string); ok {
		principal.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		principal.DisplayName = name
	}
	if verified, ok := token.Claims["email_verified"].(bool); ok {
		principal.EmailVerified = verified
	}
	return principal
}

// CreateAccount registers an email and password account.
func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*core.Principal, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	var user *auth.UserRecord
	err := p.call(ctx, "create account", func(ctx context.Context) (err error) {
		user, err = p.client.CreateUser(ctx, params)
		return err
	})
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, fmt.Errorf("%w: email already registered", core.ErrInvalidInput)
		}
		return nil, fmt.Errorf("create firebase user: %w", err)
	}
	p.logger.Info("account created", zap.String("uid", user.UID))
	return &core.Principal{
		ID:            user.UID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
		Provider:      models.ProviderPassword,
	}, nil
}

// DeleteAccount removes the Firebase user. Unknown users map to core.ErrProfileNotFound.
func (p *FirebaseProvider) DeleteAccount(ctx context.Context, uid string) error {
	err := p.call(ctx, "delete account", func(ctx context.Context) error {
		return p.client.DeleteUser(ctx, uid)
	})
	if err != nil {
		if auth.IsUserNotFound(err) {
			return fmt.Errorf("%w: %s", core.ErrProfileNotFound, uid)
		}
		return fmt.Errorf("delete firebase user %s: %w", uid, err)
	}
	return nil
}

// SignOut revokes every refresh token of uid. Tokens issued before the call
// fail VerifyIDTokenAndCheckRevoked from then on.
func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	err := p.call(ctx, "sign out", func(ctx context.Context) error {
		return p.client.RevokeRefreshTokens(ctx, uid)
	})
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil
		}
		return fmt.Errorf("revoke tokens of %s: %w", uid, err)
	}
	return nil
}

// PasswordResetLink generates an out-of-band reset link for email.
func (p *FirebaseProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	var link string
	err := p.call(ctx, "password reset link", func(ctx context.Context) (err error) {
		link, err = p.client.PasswordResetLink(ctx, email)
		return err
	})
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", fmt.Errorf("%w: %s", core.ErrProfileNotFound, email)
		}
		return "", fmt.Errorf("password reset link: %w", err)
	}
	return link, nil
}

var _ core.IdentityProvider = (*FirebaseProvider)(nil)

// errNoClient is returned by NewFromApp when Firebase was not initialized.
var errNoClient = errors.New("firebase auth client is not initialized")

// NewFromApp builds a provider from an initialized auth client.
func NewFromApp(client *auth.Client, timeout time.Duration, logger *zap.Logger) (*FirebaseProvider, error) {
	if client == nil {
		return nil, errNoClient
	}
	return NewFirebaseProvider(client, logger).WithTimeout(timeout), nil
}
