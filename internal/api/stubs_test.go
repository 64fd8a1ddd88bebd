package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/config"
	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
	"github.com/legendstarrx/scriptsea/internal/models"
)

const (
	testAdminEmail = "admin@scriptsea.test"
	testClientURL  = "https://app.scriptsea.test"
	bannedIP       = "203.0.113.9"

	// trustedProxy may set X-Forwarded-For; httptest servers dial from loopback.
	trustedProxy = "10.0.0.1"

	// slowToken stands for a token the identity provider could not check in time.
	slowToken = "slow-token"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

type stubVerifier map[string]*core.Principal

func (s stubVerifier) Verify(_ context.Context, token string) (*core.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	if token == slowToken {
		return nil, core.ErrOffline
	}
	return nil, core.ErrUnauthenticated
}

type stubAuth struct {
	mu       sync.Mutex
	err      error
	offline  bool
	signups  []core.SignupInput
	recorded []string
	logins   []string
	resent   []string
	resets   []string
}

func (s *stubAuth) CheckIP(_ context.Context, ip string) error {
	if ip == bannedIP {
		return core.ErrIPBanned
	}
	return nil
}

func (s *stubAuth) Signup(_ context.Context, in core.SignupInput) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.signups = append(s.signups, in)
	return &models.Profile{ID: "new", Email: in.Email, Plan: models.PlanFree, ScriptsRemaining: 3, ScriptsLimit: 3}, nil
}

func (s *stubAuth) Login(_ context.Context, p *core.Principal, ip string) (*models.Profile, bool, error) {
	s.mu.Lock()
	s.logins = append(s.logins, ip)
	s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	return &models.Profile{ID: p.ID, Email: p.Email, Plan: models.PlanFree}, s.offline, nil
}

func (s *stubAuth) Profile(_ context.Context, p *core.Principal) (*models.Profile, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &models.Profile{ID: p.ID, Email: p.Email, Plan: models.PlanPro}, s.offline, nil
}

func (s *stubAuth) RecordIP(_ context.Context, uid, ip string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, ip)
	return &models.Profile{ID: uid, IPAddress: ip, LastLoginIP: ip}, nil
}

func (s *stubAuth) ResendVerification(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resent = append(s.resent, email)
	return s.err
}

func (s *stubAuth) PasswordReset(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, email)
	return s.err
}

type stubVerification struct{ valid string }

func (s stubVerification) Consume(_ context.Context, token string) (*models.Profile, error) {
	if token == "" || token != s.valid {
		return nil, core.ErrTokenExpiredOrInvalid
	}
	return &models.Profile{ID: "u1", EmailVerified: true}, nil
}

type stubGeneration struct {
	mu  sync.Mutex
	err error
	ips []string
}

func (s *stubGeneration) Generate(_ context.Context, _ *core.Principal, ip string, req core.GenerationRequest) (*core.GenerationResult, error) {
	s.mu.Lock()
	s.ips = append(s.ips, ip)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &core.GenerationResult{Script: "Script about " + req.Topic, ScriptsRemaining: 2, ScriptsLimit: 3}, nil
}

type stubPayments struct {
	err      error
	gateways []string
}

func (s *stubPayments) HandleWebhook(_ context.Context, v core.WebhookVerifier, _ []byte, _ http.Header) error {
	s.gateways = append(s.gateways, v.Gateway())
	return s.err
}

type namedVerifier string

func (n namedVerifier) Gateway() string { return string(n) }

func (n namedVerifier) Verify([]byte, http.Header) (*core.PaymentEvent, error) {
	return nil, errors.New("not called through the stub payment service")
}

type stubAdmin struct {
	mu      sync.Mutex
	err     error
	actions []string
}

func (s *stubAdmin) note(action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return s.err
}

func (s *stubAdmin) ListUsers(_ context.Context, limit int, cursor string) ([]*models.Profile, string, error) {
	if err := s.note("list"); err != nil {
		return nil, "", err
	}
	return []*models.Profile{{ID: "u1"}, {ID: "u2"}}, "u2", nil
}

func (s *stubAdmin) UpdatePlan(_ context.Context, actor, uid string, plan models.Plan) (*models.Profile, error) {
	if err := s.note("plan:" + actor + ":" + uid + ":" + string(plan)); err != nil {
		return nil, err
	}
	return &models.Profile{ID: uid, Plan: plan}, nil
}

func (s *stubAdmin) SetBanned(_ context.Context, actor, uid string, banned bool) (*models.Profile, error) {
	action := "unban:"
	if banned {
		action = "ban:"
	}
	if err := s.note(action + uid); err != nil {
		return nil, err
	}
	return &models.Profile{ID: uid, IsBanned: banned}, nil
}

func (s *stubAdmin) DeleteUser(_ context.Context, _, uid string) error {
	return s.note("delete:" + uid)
}

func (s *stubAdmin) RevokeSessions(_ context.Context, _, uid string) error {
	return s.note("revoke:" + uid)
}

func (s *stubAdmin) BanIP(_ context.Context, actor, ip, reason string) (*models.BannedIP, error) {
	if err := s.note("banip:" + ip); err != nil {
		return nil, err
	}
	return &models.BannedIP{IP: ip, Reason: reason, BannedBy: actor}, nil
}

func (s *stubAdmin) UnbanIP(_ context.Context, _, ip string) error {
	return s.note("unbanip:" + ip)
}

func (s *stubAdmin) ListBannedIPs(context.Context) ([]*models.BannedIP, error) {
	if err := s.note("listips"); err != nil {
		return nil, err
	}
	return []*models.BannedIP{{IP: bannedIP}}, nil
}

func (s *stubAdmin) ListPayments(_ context.Context, limit int) ([]*models.PaymentRecord, error) {
	if err := s.note("payments"); err != nil {
		return nil, err
	}
	return []*models.PaymentRecord{{Reference: "ref-1", Amount: 500000, Currency: "NGN"}}, nil
}

// echoRunner publishes the principal of every session change.
type echoRunner struct {
	publish func(core.AccountState)
	done    chan struct{}
	once    sync.Once
}

func (r *echoRunner) Run(ctx context.Context, changes <-chan *core.Principal) {
	defer r.Teardown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case p, ok := <-changes:
			if !ok {
				return
			}
			if p == nil {
				r.publish(core.AccountState{})
				continue
			}
			r.publish(core.AccountState{Principal: p, Profile: &models.Profile{ID: p.ID, Email: p.Email}})
		}
	}
}

func (r *echoRunner) Teardown() {
	r.once.Do(func() { close(r.done) })
}

type testServer struct {
	router       *gin.Engine
	auth         *stubAuth
	payments     *stubPayments
	admin        *stubAdmin
	generation   *stubGeneration
	verification stubVerification
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		auth:         &stubAuth{},
		payments:     &stubPayments{},
		admin:        &stubAdmin{},
		generation:   &stubGeneration{},
		verification: stubVerification{valid: "good-token"},
	}
	verifier := stubVerifier{
		"user-token":  {ID: "u1", Email: "user@scriptsea.test", Provider: models.ProviderPassword, EmailVerified: true},
		"admin-token": {ID: "adm", Email: testAdminEmail, Provider: models.ProviderPassword, EmailVerified: true},
	}
	router := gin.New()
	cfg := &config.Config{
		ClientURL:      testClientURL + "/, https://www.scriptsea.test",
		TrustedProxies: trustedProxy + ", 127.0.0.1",
	}
	err := SetupRoutes(router, cfg, zap.NewNop(), Services{
		Verifier:     verifier,
		Admins:       core.SingleAdmin(testAdminEmail),
		Auth:         ts.auth,
		Verification: ts.verification,
		Generation:   ts.generation,
		Payments:     ts.payments,
		Admin:        ts.admin,
		Sessions: func(publish func(core.AccountState)) SessionRunner {
			return &echoRunner{publish: publish, done: make(chan struct{})}
		},
		Webhooks: []core.WebhookVerifier{namedVerifier("paystack"), namedVerifier("stripe")},
		Limiter:  middleware.NewRateLimiter(),
	})
	if err != nil {
		t.Fatalf("SetupRoutes: %v", err)
	}
	ts.router = router
	return ts
}

type request struct {
	method  string
	path    string
	body    string
	token   string
	headers map[string]string

	// remoteAddr overrides the peer address httptest assigns.
	remoteAddr string
}

func (ts *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if req.body != "" {
		r = httptest.NewRequest(req.method, req.path, strings.NewReader(req.body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(req.method, req.path, nil)
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	if req.remoteAddr != "" {
		r.RemoteAddr = req.remoteAddr
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, r)
	return w
}
