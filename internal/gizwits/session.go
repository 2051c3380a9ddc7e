package gizwits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/metrics"
)

// Session is a bearer token and the instant it stops being accepted.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session can be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && s.ExpiresAt.After(now)
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (Session, error)
}

// SessionManager owns the session and refreshes it lazily. There is no
// refresh timer: expiry is checked on every use.
type SessionManager struct {
	auth     Authenticator
	username string
	password string
	log      *zap.SugaredLogger
	now      func() time.Time

	mu sync.Mutex
	s  Session
}

func NewSessionManager(auth Authenticator, username, password string, log *zap.SugaredLogger) *SessionManager {
	return &SessionManager{
		auth:     auth,
		username: username,
		password: password,
		log:      log,
		now:      time.Now,
	}
}

// EnsureValidToken returns the stored token if still valid, otherwise logs in
// once and stores the new session. A failed login leaves the stored session
// as it was and is not retried here.
func (m *SessionManager) EnsureValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.s.Valid(m.now()) {
		return m.s.Token, nil
	}

	s, err := m.auth.Login(ctx, m.username, m.password)
	metrics.Logins.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		m.log.Errorw("unable to log in to Heatzy server", "err", err)
		return "", fmt.Errorf("%w: %w", ErrLogin, err)
	}

	m.s = s
	m.log.Debugw("logged in Heatzy server", "expires_at", s.ExpiresAt)
	return s.Token, nil
}

// Invalidate drops the stored session so the next call logs in again.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Session{}
}

func (m *SessionManager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}
