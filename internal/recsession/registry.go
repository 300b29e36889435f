package recsession

import (
	"sync"
	"time"

	"rec/internal/config"
	"rec/internal/errkind"
	"rec/internal/eventbus"
)

// Registry is a thread-safe name→Session map (spec.md §4.4). create is the
// only writer of new entries; a failed Open leaves the map unchanged. A
// nil map value is a reservation placeholder held only while Open runs, so
// two concurrent Creates for the same name can't both succeed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	tun      config.Tunables
	bus      *eventbus.Bus
}

// NewRegistry creates an empty Registry.
func NewRegistry(tun config.Tunables, bus *eventbus.Bus) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		tun:      tun,
		bus:      bus,
	}
}

// Create opens a new Session named name. Returns SESSION_EXISTS if the
// name is already in use (reserved or live).
func (r *Registry) Create(name, kind string) (*Session, error) {
	r.mu.Lock()
	if _, exists := r.sessions[name]; exists {
		r.mu.Unlock()
		return nil, errkind.New(errkind.SessionExists, "session %q already exists", name)
	}
	r.sessions[name] = nil
	r.mu.Unlock()

	sess, err := Open(name, kind, r.tun, r.bus)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.sessions, name)
		return nil, err
	}
	r.sessions[name] = sess
	return sess, nil
}

// Get looks up a live Session by name. A Session observed CLOSED (e.g.
// after an unrecoverable timeout auto-closed it) is evicted and reported
// as SESSION_NOT_FOUND, per spec.md §7: "a closed session returns
// SESSION_NOT_FOUND on subsequent operations, never SESSION_CLOSED".
func (r *Registry) Get(name string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[name]
	if !ok || sess == nil {
		return nil, errkind.New(errkind.SessionNotFound, "session %q not found", name)
	}
	if sess.State() == Closed {
		delete(r.sessions, name)
		return nil, errkind.New(errkind.SessionNotFound, "session %q not found", name)
	}
	return sess, nil
}

// Close closes and removes the named Session. The entry is removed only
// after Session.Close returns, per spec.md §4.4, so a concurrent Get
// either observes a live Session or NOT_FOUND, never a half-torn-down one.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	sess, ok := r.sessions[name]
	r.mu.Unlock()
	if !ok || sess == nil {
		return errkind.New(errkind.SessionNotFound, "session %q not found", name)
	}

	err := sess.Close()

	r.mu.Lock()
	delete(r.sessions, name)
	r.mu.Unlock()
	return err
}

// List returns metadata for every live session, in no particular order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess != nil {
			sessions = append(sessions, sess)
		}
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// CloseAll closes every live session concurrently, waiting up to deadline
// for all of them to finish — the supervisor's bounded graceful shutdown
// (spec.md §4.8).
func (r *Registry) CloseAll(deadline time.Duration) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for name, sess := range r.sessions {
		if sess != nil {
			sessions = append(sessions, sess)
		}
		delete(r.sessions, name)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, sess := range sessions {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.Close()
			}(sess)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
	}
}
