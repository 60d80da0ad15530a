package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/immansha/renewcast/core/factory"
)

// Defaults shared by the chat-completion providers.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 350
	DefaultTimeout     = 20 * time.Second
)

// ChatConfig configures an OpenAI-compatible chat-completion provider.
type ChatConfig struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

var chatDefaults = map[string]ChatConfig{
	ProviderGroq:   {BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.1-8b-instant"},
	ProviderOpenAI: {Model: openai.GPT4oMini},
	ProviderGemini: {BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", Model: "gemini-1.5-flash"},
}

func (c *ChatConfig) setDefaults(provider string) {
	d := chatDefaults[provider]
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Chat calls an OpenAI-compatible chat-completion endpoint.
type Chat struct {
	name   string
	cfg    ChatConfig
	client *openai.Client
}

// NewChat builds a provider. An empty BaseURL targets the OpenAI API.
func NewChat(name string, cfg ChatConfig) (*Chat, error) {
	if !UsableKey(cfg.APIKey) {
		return nil, errors.New("missing api key")
	}
	cfg.setDefaults(name)
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &Chat{name: name, cfg: cfg, client: openai.NewClientWithConfig(oc)}, nil
}

// Name returns the provider name.
func (c *Chat) Name() string { return c.name }

// Model returns the configured model.
func (c *Chat) Model() string { return c.cfg.Model }

// Generate sends one system and one user message.
func (c *Chat) Generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", c.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func chatFactory(name string) factory.Factory[Generator] {
	return func(raw map[string]any) (Generator, error) {
		var cfg ChatConfig
		if err := factory.Decode(raw, &cfg); err != nil {
			return nil, err
		}
		c, err := NewChat(name, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func init() {
	for _, name := range DefaultPriority {
		_ = Register(name, chatFactory(name))
	}
}
