package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"llamachat/pkg/llama3"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store keeps one conversation per session id.
type Store interface {
	// Create stores req under a new id.
	Create(req *llama3.ChatRequest) string
	// Get returns a copy of the conversation.
	Get(id string) (*llama3.ChatRequest, bool)
	// Update runs fn with exclusive access to the stored conversation.
	Update(id string, fn func(*llama3.ChatRequest) error) error
	Delete(id string)
	List() []string
}

type session struct {
	mu  sync.Mutex
	req *llama3.ChatRequest
}

// InMemory is a simple thread-safe Store. Sessions are locked individually so
// a long running Update does not block other conversations.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*session)}
}

func (m *InMemory) Create(req *llama3.ChatRequest) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &session{req: req.Clone()}
	return id
}

func (m *InMemory) Get(id string) (*llama3.ChatRequest, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req.Clone(), true
}

// Update hands fn a working copy and commits it only when fn succeeds.
func (m *InMemory) Update(id string, fn func(*llama3.ChatRequest) error) error {
	s, ok := m.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.req.Clone()
	if err := fn(work); err != nil {
		return err
	}
	s.req = work
	return nil
}

func (m *InMemory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns the ids of all sessions, sorted.
func (m *InMemory) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *InMemory) lookup(id string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// FormatHistory renders a readable transcript of a conversation.
func FormatHistory(messages []llama3.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		var body string
		switch m := msg.(type) {
		case llama3.SystemMessage:
			body = m.Content
		case llama3.UserMessage:
			body = m.Content
		case llama3.AssistantReply:
			body = m.Content
		case llama3.ToolRequest:
			calls := make([]string, len(m.ToolCalls))
			for i, c := range m.ToolCalls {
				calls[i] = c.Render()
			}
			body = strings.Join(calls, "\n")
		case llama3.ToolResponseMessage:
			body = m.Content
			if !m.Success {
				body = "error: " + body
			}
		}
		lines = append(lines, string(msg.Role())+": "+body)
	}
	return strings.Join(lines, "\n")
}

var _ Store = (*InMemory)(nil)
