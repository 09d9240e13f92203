// Package session holds per-conversation state: an append-only transcript
// and accumulated token usage.
//
// The store is in-memory. A session survives for the life of the process,
// which matches the CLI and MCP entry points; nothing here assumes
// persistence across restarts.
package session

import (
	"fmt"
	"sync"
	"time"
)

// Roles recorded in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one transcript entry. Turns are append-only: history is never
// rewritten, so a reader holding the slice from History sees a stable prefix.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Usage accumulates token accounting across a session.
type Usage struct {
	Requests     int
	InputTokens  int
	OutputTokens int
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		Requests:     u.Requests + other.Requests,
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Session is one conversation's state.
//
// Session is safe for concurrent use. Callers that need a whole
// query-answer exchange to be atomic against concurrent exchanges on the
// same session serialize via Lock/Unlock.
type Session struct {
	id string

	mu      sync.Mutex
	turns   []Turn
	usage   Usage
	created time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was first opened.
func (s *Session) CreatedAt() time.Time { return s.created }

// Lock serializes a multi-step exchange on this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the exchange lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// History returns a copy of the transcript in order.
// History locks internally; do not call it while holding Lock.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

// HistoryLocked returns a copy of the transcript for callers already
// holding Lock.
func (s *Session) HistoryLocked() []Turn { return s.historyLocked() }

func (s *Session) historyLocked() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// AppendExchangeLocked records a completed user/assistant exchange as a
// single unit. The caller must hold Lock; an exchange is only written once
// the assistant turn exists, so the transcript never holds a dangling
// user turn.
func (s *Session) AppendExchangeLocked(userContent, assistantContent string) {
	now := time.Now()
	s.turns = append(s.turns,
		Turn{Role: RoleUser, Content: userContent, CreatedAt: now},
		Turn{Role: RoleAssistant, Content: assistantContent, CreatedAt: now},
	)
}

// AddUsageLocked accumulates usage. The caller must hold Lock.
func (s *Session) AddUsageLocked(u Usage) {
	s.usage = s.usage.Add(u)
}

// Usage returns the accumulated usage.
// Usage locks internally; do not call it while holding Lock.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Store keeps sessions by ID.
// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it on first use.
func (st *Store) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s, nil
	}
	s := &Session{id: id, created: time.Now()}
	st.sessions[id] = s
	return s, nil
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
