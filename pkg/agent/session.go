package agent

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/auralabs/aura/pkg/errors"
)

// Session is one conversation against a project. Turns share message
// history so the model keeps context across prompts.
type Session struct {
	ID          string
	ProjectPath string
	CreatedAt   time.Time

	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
}

func (s *Session) snapshot() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]openai.ChatCompletionMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) append(msgs ...openai.ChatCompletionMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()
}

// Len returns how many messages the session holds, the system prompt
// included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// SessionManager tracks live sessions by id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Open starts a session for a project and returns it.
func (m *SessionManager) Open(projectPath string) *Session {
	s := &Session{
		ID:          ulid.Make().String(),
		ProjectPath: projectPath,
		CreatedAt:   time.Now(),
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "unknown session: %s", id)
	}
	return s, nil
}

// Close drops a session. Unknown ids are ignored.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
