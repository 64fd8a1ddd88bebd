package core

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/models"
)

// AccountState is the single view of the current account published by a
// SessionSynchronizer.
type AccountState struct {
	Principal *Principal      `json:"principal,omitempty"`
	Profile   *models.Profile `json:"profile,omitempty"`
	Loading   bool            `json:"loading"`
	Offline   bool            `json:"offline,omitempty"`
	Err       error           `json:"-"`
	Error     string          `json:"error,omitempty"`
}

func errorState(err error) AccountState {
	return AccountState{Err: err, Error: PublicMessage(err)}
}

// SessionDeps are the collaborators shared by every SessionSynchronizer.
type SessionDeps struct {
	Source      *ProfileSource
	Profiles    db.ProfileRepository
	Provisioner *Provisioner
	Policy      *PolicyEvaluator
	Logger      *zap.Logger
}

// SessionSynchronizer tracks one client session. It reacts to identity
// changes, loads or provisions the profile, enforces the access policy and
// follows the profile's change stream, publishing an AccountState each time.
//
// Every session change bumps a generation counter; fetches and snapshots
// belonging to an older generation are dropped. After Teardown nothing more is
// published.
type SessionSynchronizer struct {
	deps    SessionDeps
	logger  *zap.Logger
	publish func(AccountState)

	mu         sync.Mutex
	generation uint64
	mounted    bool
	cancelSub  context.CancelFunc
	current    AccountState
	done       chan struct{}
}

// NewSessionSynchronizer creates a mounted synchronizer. publish is called
// with the synchronizer's lock held and must not call back into it.
func NewSessionSynchronizer(deps SessionDeps, publish func(AccountState)) *SessionSynchronizer {
	return &SessionSynchronizer{
		deps:    deps,
		logger:  deps.Logger.Named("session"),
		publish: publish,
		mounted: true,
		done:    make(chan struct{}),
	}
}

// State returns the last published state.
func (s *SessionSynchronizer) State() AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run feeds session changes into OnSessionChange until the stream closes, ctx
// ends or Teardown is called, then tears down.
func (s *SessionSynchronizer) Run(ctx context.Context, changes <-chan *Principal) {
	defer s.Teardown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case principal, ok := <-changes:
			if !ok {
				return
			}
			s.OnSessionChange(ctx, principal)
		}
	}
}

// begin starts a new generation and cancels the previous subscription.
func (s *SessionSynchronizer) begin() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return 0, false
	}
	s.generation++
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	return s.generation, true
}

func (s *SessionSynchronizer) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted && gen == s.generation
}

// emit publishes state if gen is still current.
func (s *SessionSynchronizer) emit(gen uint64, state AccountState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || gen != s.generation {
		return false
	}
	s.current = state
	s.publish(state)
	return true
}

// attach records the cancel func of gen's subscription. It fails when gen is stale.
func (s *SessionSynchronizer) attach(gen uint64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || gen != s.generation {
		return false
	}
	s.cancelSub = cancel
	return true
}

// OnSessionChange handles a new identity session; nil means signed out.
func (s *SessionSynchronizer) OnSessionChange(ctx context.Context, principal *Principal) {
	gen, ok := s.begin()
	if !ok {
		return
	}
	if principal == nil {
		s.emit(gen, AccountState{})
		return
	}
	s.emit(gen, AccountState{Principal: principal, Loading: true})

	profile, offline, err := s.deps.Source.Load(ctx, principal.ID)
	if errors.Is(err, ErrProfileNotFound) {
		profile, err = s.deps.Provisioner.Create(ctx, principal)
		offline = false
	}
	if err != nil {
		s.logger.Warn("profile load failed", zap.String("uid", principal.ID), zap.Error(err))
		st := errorState(err)
		st.Principal = principal
		st.Offline = errors.Is(err, ErrOffline)
		s.emit(gen, st)
		return
	}
	if !s.live(gen) {
		return
	}

	if err := s.deps.Policy.Enforce(ctx, profile, principal); err != nil {
		s.logger.Info("session rejected", zap.String("uid", principal.ID), zap.Error(err))
		s.emit(gen, errorState(err))
		return
	}
	profile.IsAdmin = s.deps.Policy.IsAdmin(profile.Email)

	if offline {
		s.emit(gen, AccountState{Principal: principal, Profile: profile, Offline: true})
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	snapshots, err := s.deps.Profiles.Subscribe(subCtx, principal.ID)
	if err != nil {
		cancel()
		s.logger.Warn("profile subscription failed", zap.String("uid", principal.ID), zap.Error(err))
		s.emit(gen, AccountState{Principal: principal, Profile: profile})
		return
	}
	if !s.attach(gen, cancel) {
		cancel()
		return
	}
	if !s.emit(gen, AccountState{Principal: principal, Profile: profile}) {
		cancel()
		return
	}
	s.deps.Source.Remember(ctx, profile)
	go s.follow(subCtx, cancel, gen, principal, snapshots)
}

// follow applies every snapshot as a full replacement of the profile.
func (s *SessionSynchronizer) follow(ctx context.Context, cancel context.CancelFunc, gen uint64, principal *Principal, snapshots <-chan db.ProfileSnapshot) {
	defer cancel()
	for snap := range snapshots {
		if !s.live(gen) {
			return
		}
		switch {
		case snap.Err != nil:
			s.logger.Warn("profile stream failed", zap.String("uid", principal.ID), zap.Error(snap.Err))
			st := s.State()
			st.Offline = true
			s.emit(gen, st)
			return
		case !snap.Exists:
			// The account was deleted out-of-band.
			s.deps.Policy.ForceSignOut(ctx, principal.ID, "profile deleted")
			s.deps.Source.Forget(ctx, principal.ID)
			s.emit(gen, errorState(ErrUnauthenticated))
			return
		}

		p := snap.Profile
		if err := s.deps.Policy.Enforce(ctx, p, principal); err != nil {
			s.logger.Info("session ended by policy", zap.String("uid", principal.ID), zap.Error(err))
			s.emit(gen, errorState(err))
			return
		}
		p.IsAdmin = s.deps.Policy.IsAdmin(p.Email)
		// Only a snapshot the session actually published may reach the cache.
		if !s.emit(gen, AccountState{Principal: principal, Profile: p}) {
			return
		}
		s.deps.Source.Remember(ctx, p)
	}
}

// Teardown stops the session: the subscription is cancelled and no further
// state is published. It is safe to call more than once.
func (s *SessionSynchronizer) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.mounted = false
	s.generation++
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	close(s.done)
}
