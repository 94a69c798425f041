package session

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Store keeps sessions in memory, keyed by random UUIDs.
type Store struct {
    mu       sync.RWMutex
    sessions map[string]*State
    now      func() time.Time
    log      *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
    return &Store{sessions: map[string]*State{}, now: time.Now, log: log}
}

func (st *Store) Create() *State {
    s := New(uuid.NewString(), st.log)
    s.now = st.now
    s.created, s.touched = st.now(), st.now()
    st.mu.Lock()
    st.sessions[s.ID] = s
    st.mu.Unlock()
    st.log.Info("session created", zap.String("session", s.ID))
    return s
}

func (st *Store) Get(id string) (*State, error) {
    if _, err := uuid.Parse(id); err != nil { return nil, ErrSessionNotFound }
    st.mu.RLock()
    defer st.mu.RUnlock()
    s, ok := st.sessions[id]
    if !ok { return nil, ErrSessionNotFound }
    return s, nil
}

func (st *Store) Delete(id string) error {
    st.mu.Lock()
    defer st.mu.Unlock()
    if _, ok := st.sessions[id]; !ok { return ErrSessionNotFound }
    delete(st.sessions, id)
    st.log.Info("session deleted", zap.String("session", id))
    return nil
}

func (st *Store) Len() int {
    st.mu.RLock()
    defer st.mu.RUnlock()
    return len(st.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many.
func (st *Store) Sweep(maxIdle time.Duration) int {
    st.mu.RLock()
    states := make([]*State, 0, len(st.sessions))
    for _, s := range st.sessions { states = append(states, s) }
    st.mu.RUnlock()

    cutoff := st.now().Add(-maxIdle)
    n := 0
    for _, s := range states {
        if s.LastActive().Before(cutoff) && st.evict(s, cutoff) { n++ }
    }
    if n > 0 { st.log.Info("idle sessions swept", zap.Int("removed", n), zap.Duration("max_idle", maxIdle)) }
    return n
}

// evict removes s if it is still registered and still idle since cutoff.
// The check runs under the write lock so a session touched after the
// snapshot in Sweep survives.
func (st *Store) evict(s *State, cutoff time.Time) bool {
    st.mu.Lock()
    defer st.mu.Unlock()
    if cur, ok := st.sessions[s.ID]; !ok || cur != s { return false }
    if !s.LastActive().Before(cutoff) { return false }
    delete(st.sessions, s.ID)
    return true
}

// RunSweeper sweeps every interval until ctx is done.
func (st *Store) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            st.Sweep(maxIdle)
        }
    }
}
