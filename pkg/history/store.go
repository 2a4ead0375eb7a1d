// Package history keeps per-session conversation state in memory.
//
// Each session owns an ordered, bounded list of messages. State lives only
// for the lifetime of the process; a restart starts every session empty.
package history

import (
	"sync"

	"github.com/moriagate/balrog/pkg/llm"
)

// DefaultLimit is the number of messages retained per session.
const DefaultLimit = 20

// Store holds a bounded, ordered message history per session. Sessions are
// independent: operations on different sessions never block each other.
type Store struct {
	mu       sync.Mutex
	limit    int
	sessions map[string]*session
}

type session struct {
	// turnMu serializes whole turns for the session, see Lock.
	turnMu sync.Mutex
	// mu guards messages.
	mu       sync.Mutex
	messages []llm.Message
}

// NewStore creates a store retaining at most limit messages per session.
// A non-positive limit falls back to DefaultLimit.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		limit:    limit,
		sessions: make(map[string]*session),
	}
}

func (s *Store) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

// Messages returns a copy of the session's history, oldest first. A session
// that has never committed a turn yields an empty slice.
func (s *Store) Messages(id string) []llm.Message {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]llm.Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// AppendTurn commits a completed turn: the user message and the assistant
// reply are appended together, then the history is truncated to the most
// recent limit messages, oldest dropped first.
func (s *Store) AppendTurn(id string, user, assistant llm.Message) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = append(sess.messages, user, assistant)
	if n := len(sess.messages); n > s.limit {
		trimmed := make([]llm.Message, s.limit)
		copy(trimmed, sess.messages[n-s.limit:])
		sess.messages = trimmed
	}
}

// Clear resets the session's history to an empty sequence.
func (s *Store) Clear(id string) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = nil
}

// Lock acquires the session's turn lock and returns the release function.
// The turn pipeline holds this for a whole turn so that two concurrent
// turns on one session never interleave. Distinct sessions are unaffected.
func (s *Store) Lock(id string) (unlock func()) {
	sess := s.session(id)
	sess.turnMu.Lock()
	return sess.turnMu.Unlock
}
