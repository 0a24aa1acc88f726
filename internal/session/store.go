package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists at most one session. Save and Clear replace the whole record;
// a reader never sees a token paired with another session's expiry.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Scoper hands out the Store of one browser session id.
type Scoper interface {
	Scope(sid string) Store
}

type MemoryStore struct {
	mu  sync.Mutex
	rec *record

	// attach re-registers a swept store with its scoper on the next Save.
	attach func()
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Session{}, ErrNoSession
	}
	return fromRecord(*m.rec)
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	r := toRecord(s)
	m.mu.Lock()
	m.rec = &r
	attach := m.attach
	m.mu.Unlock()
	if attach != nil {
		attach()
	}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	return nil
}

// MemoryScoper keeps sessions in process memory, for single-instance
// deployments without Redis.
type MemoryScoper struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryScoper() *MemoryScoper {
	return &MemoryScoper{stores: map[string]*MemoryStore{}}
}

func (s *MemoryScoper) Scope(sid string) Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[sid]
	if !ok {
		st = NewMemoryStore()
		st.attach = func() {
			s.mu.Lock()
			if _, ok := s.stores[sid]; !ok {
				s.stores[sid] = st
			}
			s.mu.Unlock()
		}
		s.stores[sid] = st
	}
	return st
}

// Sweep drops the stores of browser sessions that are empty or expired at
// now and returns how many were dropped.
func (s *MemoryScoper) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid, st := range s.stores {
		st.mu.Lock()
		dead := st.rec == nil
		if !dead {
			sess, err := fromRecord(*st.rec)
			dead = err != nil || sess.Expired(now)
		}
		st.mu.Unlock()
		if dead {
			delete(s.stores, sid)
			n++
		}
	}
	return n
}

// Len reports how many browser sessions are held.
func (s *MemoryScoper) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

// FileStore keeps the session of a command-line user in one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// DefaultFilePath is <user config dir>/library-web/session.json.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library-web", "session.json"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return Session{}, ErrNoSession
	}
	return fromRecord(r)
}

// Save writes to a temp file and renames it over the old one.
func (f *FileStore) Save(_ context.Context, s Session) error {
	b, err := json.MarshalIndent(toRecord(s), "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
