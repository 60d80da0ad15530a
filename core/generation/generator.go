package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/immansha/renewcast/core/factory"
)

// Generator turns a system and user prompt into text.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Provider names in default priority order.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderDemo   = "demo"
)

// DefaultPriority is the order in which providers with usable keys are tried.
var DefaultPriority = []string{ProviderGroq, ProviderOpenAI, ProviderGemini}

var registry = factory.NewRegistry[Generator]()

// Register adds a provider factory identified by name.
func Register(name string, f factory.Factory[Generator]) error {
	return registry.Register(name, f)
}

// New creates the provider described by cfg.
func New(cfg factory.ModuleConfig) (Generator, error) {
	return registry.Create(cfg)
}

// Providers lists the registered provider names.
func Providers() []string { return registry.Names() }

// UsableKey reports whether key looks like a real credential. Template
// values such as "your-api-key" are rejected.
func UsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.Contains(key, "your-")
}

// Select returns the first provider in priority whose key is usable, or
// the demo generator. keys maps provider names to API keys; overrides holds
// extra provider settings keyed the same way.
func Select(priority []string, keys map[string]string, overrides map[string]map[string]any) (Generator, error) {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	for _, name := range priority {
		key := keys[name]
		if !UsableKey(key) {
			continue
		}
		conf := map[string]any{"api_key": key}
		for k, v := range overrides[name] {
			conf[k] = v
		}
		g, err := New(factory.ModuleConfig{Type: name, Conf: conf})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		return g, nil
	}
	return Demo{}, nil
}

const placeholderPrefix = "[LLM temporarily unavailable: "

// Placeholder is the text substituted for a failed generation.
func Placeholder(err error) string {
	msg := []rune(err.Error())
	if len(msg) > 100 {
		msg = msg[:100]
	}
	return placeholderPrefix + string(msg) + "]"
}

// IsPlaceholder reports whether text was produced by Placeholder.
func IsPlaceholder(text string) bool { return strings.HasPrefix(text, placeholderPrefix) }
