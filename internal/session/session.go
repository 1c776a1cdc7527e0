// Package session keeps per-client search state: the last results, the
// site history and the loading/error flags. Each session is loaded from the
// durable repository on first use and lives until it is explicitly reset.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/pricetrail/backend/internal/domain"
)

// Manager hands out sessions by id
type Manager struct {
	repo domain.SessionRepository
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager backed by repo. A nil repo keeps sessions in memory only.
func NewManager(repo domain.SessionRepository) *Manager {
	return &Manager{
		repo:     repo,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session for id, loading its durable copy the first
// time it is seen. Unknown or unreadable sessions start empty.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.touch()
		return s
	}

	s := &Session{
		id:       id,
		repo:     m.repo,
		now:      m.now,
		subs:     make(map[int]chan domain.SessionState),
		lastSeen: m.now(),
	}
	if m.repo != nil {
		state, err := m.repo.LoadSession(ctx, id)
		switch {
		case err == nil:
			s.state = *state
			s.state.Loading = false
		case errors.Is(err, domain.ErrSessionNotFound):
		default:
			log.Printf("[Session] loading %s failed, starting empty: %v", id, err)
		}
	}

	m.sessions[id] = s
	return s
}

// EvictIdle drops in-memory sessions unused for longer than maxIdle that
// have no subscribers. Their durable copies stay and are reloaded on the
// next Get. It returns the number of evicted sessions.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// sessionPruner is implemented by repositories that can drop stale rows
type sessionPruner interface {
	PruneSessions(ctx context.Context, before time.Time) (int64, error)
}

// Run evicts idle sessions every interval and, when the repository
// supports it, deletes durable sessions untouched for longer than retention.
// It returns when ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxIdle, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, maxIdle, retention)
		}
	}
}

func (m *Manager) sweep(ctx context.Context, maxIdle, retention time.Duration) {
	if n := m.EvictIdle(maxIdle); n > 0 {
		log.Printf("[Session] evicted %d idle sessions", n)
	}

	pruner, ok := m.repo.(sessionPruner)
	if !ok || retention <= 0 {
		return
	}
	n, err := pruner.PruneSessions(ctx, m.now().Add(-retention))
	if err != nil {
		log.Printf("[Session] pruning stored sessions failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Session] pruned %d stored sessions", n)
	}
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session is the state of one client
type Session struct {
	id   string
	repo domain.SessionRepository
	now  func() time.Time

	mu       sync.Mutex
	state    domain.SessionState
	subs     map[int]chan domain.SessionState
	nextSub  int
	lastSeen time.Time
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// StartLoading marks a search for site as running. Switching to another
// site drops the previous site's results and history.
func (s *Session) StartLoading(ctx context.Context, site string) {
	s.update(ctx, func(st *domain.SessionState) {
		s.switchSite(st, site)
		st.Loading = true
		st.Error = ""
	})
}

// Complete stores the outcome of a finished search. A nil history keeps
// the history already shown.
func (s *Session) Complete(ctx context.Context, results, history []domain.PriceRecord) {
	s.update(ctx, func(st *domain.SessionState) {
		st.Loading = false
		st.Error = ""
		st.Results = results
		if history != nil {
			st.History = history
		}
	})
}

// SetHistory replaces the shown history of site
func (s *Session) SetHistory(ctx context.Context, site string, history []domain.PriceRecord) {
	s.update(ctx, func(st *domain.SessionState) {
		s.switchSite(st, site)
		st.History = history
	})
}

// Fail ends a search with a message for the user and no results
func (s *Session) Fail(ctx context.Context, message string) {
	s.update(ctx, func(st *domain.SessionState) {
		st.Loading = false
		st.Error = message
		st.Results = nil
	})
}

// Reset clears the session in memory and its durable copy
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = domain.SessionState{UpdatedAt: s.now()}
	s.publish()

	if s.repo == nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, s.id)
}

// Subscribe returns a channel that receives the state after every change.
// Slow readers only see the latest state. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan domain.SessionState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.SessionState, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
}

// idleSince reports whether the session was last used before cutoff and
// nobody is subscribed to it
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) == 0 && s.lastSeen.Before(cutoff)
}

func (s *Session) switchSite(st *domain.SessionState, site string) {
	if st.Site != site {
		st.Site = site
		st.Results = nil
		st.History = nil
	}
}

// update applies fn, notifies subscribers and persists the result
func (s *Session) update(ctx context.Context, fn func(*domain.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	s.state.UpdatedAt = s.now()
	s.lastSeen = s.state.UpdatedAt
	s.publish()

	if s.repo == nil {
		return
	}
	state := copyState(s.state)
	if err := s.repo.SaveSession(ctx, s.id, &state); err != nil {
		log.Printf("[Session] saving %s failed: %v", s.id, err)
	}
}

// publish must be called with s.mu held
func (s *Session) publish() {
	for _, ch := range s.subs {
		state := copyState(s.state)
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func copyState(st domain.SessionState) domain.SessionState {
	out := st
	if st.Results != nil {
		out.Results = append([]domain.PriceRecord(nil), st.Results...)
	}
	if st.History != nil {
		out.History = append([]domain.PriceRecord(nil), st.History...)
	}
	return out
}
