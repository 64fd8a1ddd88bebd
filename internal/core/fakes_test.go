package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/configs"
	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
	"github.com/legendstarrx/scriptsea/pkg/cache"
)

const testAdminEmail = "admin@scriptsea.test"

// fakeProfiles is an in-memory ProfileRepository. Mutate is serialized by a
// single mutex, which gives it the same atomicity as a store transaction.
type fakeProfiles struct {
	mu          sync.Mutex
	docs        map[string]*models.Profile
	subs        map[string][]chan db.ProfileSnapshot
	unavailable bool
	writes      int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		docs: make(map[string]*models.Profile),
		subs: make(map[string][]chan db.ProfileSnapshot),
	}
}

func (f *fakeProfiles) setUnavailable(v bool) {
	f.mu.Lock()
	f.unavailable = v
	f.mu.Unlock()
}

func (f *fakeProfiles) put(p *models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[p.ID] = p.Clone()
	f.notifyLocked(p.ID)
}

func (f *fakeProfiles) get(id string) *models.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Clone()
}

func (f *fakeProfiles) notifyLocked(id string) {
	snap := db.ProfileSnapshot{Profile: f.docs[id].Clone(), Exists: f.docs[id] != nil}
	for _, ch := range f.subs[id] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, db.ErrUnavailable
	}
	p, ok := f.docs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p.Clone(), nil
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, db.ErrUnavailable
	}
	for _, p := range f.docs {
		if p.Email == email {
			return p.Clone(), nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeProfiles) GetByVerificationToken(_ context.Context, token string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.docs {
		if pending := p.PendingToken(); pending != "" && pending == token {
			return p.Clone(), nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeProfiles) Create(_ context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return db.ErrUnavailable
	}
	if _, ok := f.docs[p.ID]; ok {
		return db.ErrAlreadyExists
	}
	f.docs[p.ID] = p.Clone()
	f.writes++
	f.notifyLocked(p.ID)
	return nil
}

func (f *fakeProfiles) Mutate(_ context.Context, id string, fn db.MutateFunc) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, db.ErrUnavailable
	}
	cur, ok := f.docs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	f.docs[id] = next
	f.writes++
	f.notifyLocked(id)
	return next.Clone(), nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.docs, id)
	f.notifyLocked(id)
	return nil
}

func (f *fakeProfiles) List(_ context.Context, limit int, startAfter string) ([]*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		if id > startAfter {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*models.Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.docs[id].Clone())
	}
	return out, nil
}

func (f *fakeProfiles) Subscribe(ctx context.Context, id string) (<-chan db.ProfileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan db.ProfileSnapshot, 16)
	f.subs[id] = append(f.subs[id], ch)
	ch <- db.ProfileSnapshot{Profile: f.docs[id].Clone(), Exists: f.docs[id] != nil}
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[id]
		for i, c := range subs {
			if c == ch {
				f.subs[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (f *fakeProfiles) subscribers(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}

// failStream delivers a stream error to every subscriber of id.
func (f *fakeProfiles) failStream(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[id] {
		ch <- db.ProfileSnapshot{Err: err}
	}
}

type fakeBannedIPs struct {
	mu      sync.Mutex
	entries map[string]*models.BannedIP
	err     error
}

func newFakeBannedIPs() *fakeBannedIPs {
	return &fakeBannedIPs{entries: make(map[string]*models.BannedIP)}
}

func (f *fakeBannedIPs) Get(_ context.Context, ip string) (*models.BannedIP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[ip]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (f *fakeBannedIPs) Put(_ context.Context, entry *models.BannedIP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *entry
	f.entries[entry.IP] = &c
	return nil
}

func (f *fakeBannedIPs) MarkUnbanned(_ context.Context, ip string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[ip]
	if !ok {
		return db.ErrNotFound
	}
	e.UnbannedAt = &at
	return nil
}

func (f *fakeBannedIPs) Delete(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[ip]; !ok {
		return db.ErrNotFound
	}
	delete(f.entries, ip)
	return nil
}

func (f *fakeBannedIPs) List(_ context.Context) ([]*models.BannedIP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.BannedIP, 0, len(f.entries))
	for _, e := range f.entries {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out, nil
}

func (f *fakeBannedIPs) has(ip string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[ip]
	return ok
}

// fakePayments applies payments through fakeProfiles while holding its own
// lock, so the record check and the profile write are one atomic step.
type fakePayments struct {
	mu       sync.Mutex
	profiles *fakeProfiles
	records  map[string]*models.PaymentRecord
}

func newFakePayments(profiles *fakeProfiles) *fakePayments {
	return &fakePayments{profiles: profiles, records: make(map[string]*models.PaymentRecord)}
}

func (f *fakePayments) ApplyOnce(ctx context.Context, rec *models.PaymentRecord, fn db.MutateFunc) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.Reference]; ok {
		return nil, db.ErrAlreadyExists
	}
	p, err := f.profiles.Mutate(ctx, rec.UserID, fn)
	if err != nil {
		return nil, err
	}
	c := *rec
	f.records[rec.Reference] = &c
	return p, nil
}

func (f *fakePayments) List(_ context.Context, limit int) ([]*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.PaymentRecord, 0, len(f.records))
	for _, r := range f.records {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePayments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAudit) Create(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeIdentity struct {
	mu         sync.Mutex
	tokens     map[string]*Principal
	signOuts   []string
	deleted    []string
	nextID     int
	resetLinks map[string]string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{tokens: make(map[string]*Principal), resetLinks: make(map[string]string)}
}

func (f *fakeIdentity) Verify(_ context.Context, idToken string) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.tokens[idToken]
	if !ok {
		return nil, ErrUnauthenticated
	}
	c := *p
	return &c, nil
}

func (f *fakeIdentity) CreateAccount(_ context.Context, email, _, displayName string) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := &Principal{ID: fmt.Sprintf("uid-%d", f.nextID), Email: email, DisplayName: displayName, Provider: models.ProviderPassword}
	f.tokens["token-"+p.ID] = p
	c := *p
	return &c, nil
}

func (f *fakeIdentity) DeleteAccount(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeIdentity) SignOut(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, uid)
	return nil
}

func (f *fakeIdentity) PasswordResetLink(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.resetLinks[email]
	if !ok {
		return "", ErrProfileNotFound
	}
	return link, nil
}

func (f *fakeIdentity) signedOut(uid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.signOuts {
		if id == uid {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	resets       map[string]string
	err          error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{verification: make(map[string]string), resets: make(map[string]string)}
}

func (f *fakeNotifier) SendVerification(_ context.Context, email, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.verification[email] = link
	return nil
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resets[email] = link
	return nil
}

func (f *fakeNotifier) link(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verification[email]
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "SCRIPT: " + req.Topic, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (f *fakePublisher) Publish(_ context.Context, queueName string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = make(map[string][][]byte)
	}
	f.messages[queueName] = append(f.messages[queueName], body)
	return nil
}

func (f *fakePublisher) count(queueName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[queueName])
}

// testEnv wires every core service onto the fakes.
type testEnv struct {
	profiles  *fakeProfiles
	bannedIPs *fakeBannedIPs
	payments  *fakePayments
	audit     *fakeAudit
	identity  *fakeIdentity
	notifier  *fakeNotifier
	generator *fakeGenerator
	events    *fakePublisher
	cache     *cache.MemoryCache

	policy       *PolicyEvaluator
	ledger       *QuotaLedger
	verification *VerificationService
	source       *ProfileSource
	provisioner  *Provisioner
	auth         *AuthService
	generation   *GenerationService
	paymentSvc   *PaymentService
	admin        *AdminService
	cleanup      *CleanupJob
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	catalog, err := configs.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	e := &testEnv{
		profiles:  newFakeProfiles(),
		bannedIPs: newFakeBannedIPs(),
		audit:     &fakeAudit{},
		identity:  newFakeIdentity(),
		notifier:  newFakeNotifier(),
		generator: &fakeGenerator{},
		events:    &fakePublisher{},
		cache:     cache.NewMemoryCache(),
	}
	e.payments = newFakePayments(e.profiles)

	auditSvc := NewAuditService(e.audit, logger)
	e.policy = NewPolicyEvaluator(e.bannedIPs, SingleAdmin(testAdminEmail), e.identity, auditSvc, logger)
	e.ledger = NewQuotaLedger(e.profiles)
	e.verification = NewVerificationService(e.profiles, e.notifier, "https://app.scriptsea.test/", logger)
	e.source = NewProfileSource(e.profiles, NewProfileCache(e.cache, time.Hour), time.Second, logger)
	e.provisioner = NewProvisioner(e.profiles, SingleAdmin(testAdminEmail), e.verification, logger)
	e.auth = NewAuthService(e.policy, e.identity, e.profiles, e.source, e.provisioner, e.verification, e.notifier, logger)
	e.generation = NewGenerationService(e.policy, e.source, e.ledger, e.generator, logger)
	e.paymentSvc = NewPaymentService(e.profiles, e.payments, e.ledger, catalog, e.events, logger)
	e.admin = NewAdminService(e.profiles, e.bannedIPs, e.ledger, e.paymentSvc, e.identity, e.source, e.policy, auditSvc, logger)
	e.cleanup = NewCleanupJob(e.profiles, e.ledger, logger)
	return e
}

const testCatalog = `
prices:
  - code: pro_monthly
    plan: pro
    interval: monthly
    amount: 499
    currency: usd
    days: 30
  - code: pro_yearly
    plan: pro
    interval: yearly
    amount: 4999
    currency: USD
    days: 365
`

// seed stores a verified free profile and returns it.
func (e *testEnv) seed(id, email string, mutate ...func(*models.Profile)) *models.Profile {
	now := time.Now()
	p := &models.Profile{
		ID:               id,
		Email:            email,
		AuthProvider:     models.ProviderPassword,
		Plan:             models.PlanFree,
		ScriptsRemaining: models.FreeScriptsLimit,
		ScriptsLimit:     models.FreeScriptsLimit,
		EmailVerified:    true,
		CreatedAt:        now,
		LastLogin:        now,
		UpdatedAt:        now,
	}
	for _, m := range mutate {
		m(p)
	}
	e.profiles.put(p)
	return p.Clone()
}

func passwordPrincipal(id, email string) *Principal {
	return &Principal{ID: id, Email: email, Provider: models.ProviderPassword}
}

func googlePrincipal(id, email string) *Principal {
	return &Principal{ID: id, Email: email, Provider: models.ProviderGoogle, EmailVerified: true}
}
