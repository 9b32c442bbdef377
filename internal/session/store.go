// Package session keeps the per-session code slot: the most recently
// generated program, replaced only by a newer successful generation
// and dropped when the session expires or the process restarts.
package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/appforge/appforge/internal/generate"
)

// ErrBusy is returned when a generation is already in flight for the
// session. A second request is rejected rather than queued.
var ErrBusy = errors.New("a generation is already in progress for this session")

// Session holds one user's state between interactions.
type Session struct {
	ID         string
	Code       string
	Mode       generate.Mode
	CreatedAt  time.Time
	UpdatedAt  time.Time
	generating bool
}

// Store is an in-memory session registry with idle expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewStore(ttl time.Duration, log *zap.Logger) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// touch returns the session for id, creating it on first use.
// Callers must hold s.mu.
func (s *Store) touch(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.sessions[id] = sess
	}
	return sess
}

// Begin marks a generation as in flight. It fails with ErrBusy while
// a previous one has not finished.
func (s *Store) Begin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.touch(id)
	if sess.generating {
		return ErrBusy
	}
	sess.generating = true
	sess.UpdatedAt = time.Now()
	return nil
}

// Complete stores a successful generation, replacing any prior code.
func (s *Store) Complete(id, code string, mode generate.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.touch(id)
	sess.Code = code
	sess.Mode = mode
	sess.generating = false
	sess.UpdatedAt = time.Now()
}

// Abort ends a failed generation. The previous code slot is left as it was.
func (s *Store) Abort(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.generating = false
		sess.UpdatedAt = time.Now()
	}
}

// Code returns the session's current code slot.
func (s *Store) Code(id string) (code string, mode generate.Mode, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions[id]
	if !found || sess.Code == "" {
		return "", "", false
	}
	sess.UpdatedAt = time.Now()
	return sess.Code, sess.Mode, true
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the expiry sweeper.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) sweep() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.expire(time.Now())
		}
	}
}

func (s *Store) expire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
			s.log.Debug("session expired", zap.String("session", id))
		}
	}
}
