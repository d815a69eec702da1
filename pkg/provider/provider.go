// Package provider manages the LLM backends the agent can talk to. Every
// backend speaks the OpenAI chat completion protocol; only the base URL,
// key, and model list differ. OpenRouter ships as the builtin; users add
// their own (an Ollama host, a corporate gateway) through the manager.
package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/auralabs/aura/pkg/errors"
)

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	Name         string   `yaml:"name" json:"name"`
	DisplayName  string   `yaml:"display_name" json:"display_name"`
	BaseURL      string   `yaml:"base_url" json:"base_url,omitempty"`
	APIKey       string   `yaml:"api_key" json:"-"`
	Models       []string `yaml:"models" json:"models"`
	DefaultModel string   `yaml:"default_model" json:"default_model"`
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" && len(c.Models) > 0 {
		c.DefaultModel = c.Models[0]
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	return c
}

// Info is the provider shape exposed over the API. The key never leaves
// the backend.
type Info struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Builtin      bool     `json:"builtin"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
	BaseURL      string   `json:"base_url,omitempty"`
}

// Provider is one configured endpoint plus its client.
type Provider struct {
	cfg     Config
	builtin bool
	client  *openai.Client
}

func newProvider(cfg Config, builtin bool) *Provider {
	cfg = cfg.withDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		cfg:     cfg,
		builtin: builtin,
		client:  openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the provider's unique name.
func (p *Provider) Name() string { return p.cfg.Name }

// DefaultModel returns the model used when a request names none.
func (p *Provider) DefaultModel() string { return p.cfg.DefaultModel }

// Info returns the API-safe description. Builtin providers hide their
// base URL.
func (p *Provider) Info() Info {
	info := Info{
		Name:         p.cfg.Name,
		DisplayName:  p.cfg.DisplayName,
		Builtin:      p.builtin,
		Models:       p.cfg.Models,
		DefaultModel: p.cfg.DefaultModel,
	}
	if !p.builtin {
		info.BaseURL = p.cfg.BaseURL
	}
	return info
}

// Complete sends a chat completion request and returns the first
// choice's content.
func (p *Provider) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = p.cfg.DefaultModel
	}
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAPIError, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAPIError, "provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping checks the endpoint is reachable and the key is accepted by
// sending a minimal single-token completion.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.cfg.DefaultModel,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAPIError, "provider test failed")
	}
	return nil
}

// Chat sends a full conversation, optionally with tool definitions, and
// returns the first choice's message so callers can act on tool calls.
func (p *Provider) Chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	if model == "" {
		model = p.cfg.DefaultModel
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, errors.Wrap(err, errors.ErrCodeAPIError, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New(errors.ErrCodeAPIError, "provider returned no choices")
	}
	return resp.Choices[0].Message, nil
}
