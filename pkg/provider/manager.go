package provider

import (
	"context"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/auralabs/aura/pkg/errors"
)

// BuiltinOpenRouter is the name of the provider that ships configured.
const BuiltinOpenRouter = "openrouter"

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Manager holds the provider set and the active selection. Custom
// providers come from configuration; there is no global instance, the
// caller constructs one and passes it down.
type Manager struct {
	mu      sync.RWMutex
	byName  map[string]*Provider
	active  string
}

// NewManager creates a manager with the builtin OpenRouter provider plus
// any custom configs. An unknown active name falls back to the builtin.
func NewManager(openRouterKey string, custom []Config, active string) *Manager {
	m := &Manager{byName: make(map[string]*Provider)}

	m.byName[BuiltinOpenRouter] = newProvider(Config{
		Name:        BuiltinOpenRouter,
		DisplayName: "OpenRouter",
		BaseURL:     openRouterBaseURL,
		APIKey:      openRouterKey,
		Models: []string{
			"anthropic/claude-sonnet-4",
			"openai/gpt-4o",
			"meta-llama/llama-3.3-70b-instruct",
		},
	}, true)

	for _, cfg := range custom {
		if cfg.Name == "" || cfg.Name == BuiltinOpenRouter {
			continue
		}
		m.byName[cfg.Name] = newProvider(cfg, false)
	}

	if _, ok := m.byName[active]; !ok {
		active = BuiltinOpenRouter
	}
	m.active = active
	return m
}

// List returns all providers, builtin first, then custom sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := []Info{m.byName[BuiltinOpenRouter].Info()}
	var custom []Info
	for name, p := range m.byName {
		if name == BuiltinOpenRouter {
			continue
		}
		custom = append(custom, p.Info())
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(infos, custom...)
}

// Get returns a provider by name.
func (m *Manager) Get(name string) (*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "unknown provider: %s", name)
	}
	return p, nil
}

// Active returns the currently selected provider.
func (m *Manager) Active() *Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byName[m.active]
}

// SetActive switches the active provider.
func (m *Manager) SetActive(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "unknown provider: %s", name)
	}
	m.active = name
	return nil
}

// Add registers a custom provider. The builtin cannot be replaced.
func (m *Manager) Add(cfg Config) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "provider name is required")
	}
	if cfg.Name == BuiltinOpenRouter {
		return errors.New(errors.ErrCodeInvalidInput, "cannot replace the builtin provider")
	}
	if cfg.BaseURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "provider base_url is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[cfg.Name] = newProvider(cfg, false)
	return nil
}

// Chat delegates to the active provider, so a caller holding the
// manager follows provider switches without rewiring.
func (m *Manager) Chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	return m.Active().Chat(ctx, model, messages, tools)
}

// DefaultModel returns the active provider's default model.
func (m *Manager) DefaultModel() string {
	return m.Active().DefaultModel()
}

// Remove deletes a custom provider. Removing the active one falls back
// to the builtin.
func (m *Manager) Remove(name string) error {
	if name == BuiltinOpenRouter {
		return errors.New(errors.ErrCodeInvalidInput, "cannot remove the builtin provider")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "unknown provider: %s", name)
	}
	delete(m.byName, name)
	if m.active == name {
		m.active = BuiltinOpenRouter
	}
	return nil
}
