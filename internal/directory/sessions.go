package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 2 * time.Hour

var ErrSessionNotFound = errors.New("directory session not found")

type session struct {
	engine   *Engine
	lastSeen time.Time
}

// Sessions keeps one loaded engine per client session.
type Sessions struct {
	repo   student.Repository
	logger *slog.Logger
	opts   Options
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessions(repo student.Repository, logger *slog.Logger, opts Options, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		repo:     repo,
		logger:   logger,
		opts:     opts,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Create loads a fresh engine and registers it. A failed student read still
// returns an error; the engine is discarded.
func (s *Sessions) Create(ctx context.Context) (string, *Engine, error) {
	engine := New(s.repo, s.logger, s.opts)
	if err := engine.Load(ctx); err != nil {
		engine.Close()
		return "", nil, err
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &session{engine: engine, lastSeen: s.now()}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "directory session created", "session_id", id)
	return id, engine, nil
}

// Get returns a live engine and refreshes its expiry.
func (s *Sessions) Get(id string) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		sess.engine.Close()
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = now
	return sess.engine, nil
}

func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.engine.Close()
	return nil
}

// Len reports the number of registered sessions, expired or not.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops every session idle for longer than the TTL.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			sess.engine.Close()
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired directory sessions removed", "count", n)
			}
		}
	}
}

// CloseAll closes every engine; used on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.engine.Close()
		delete(s.sessions, id)
	}
}
