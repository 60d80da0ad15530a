package config

import (
	"fmt"
	"strings"

	"github.com/immansha/renewcast/core/generation"
)

// providerEnv names the environment variable holding each provider key.
var providerEnv = map[string]string{
	generation.ProviderGroq:   "GROQ_API_KEY",
	generation.ProviderOpenAI: "OPENAI_API_KEY",
	generation.ProviderGemini: "GEMINI_API_KEY",
}

// GenerationConfig selects the text generation provider.
type GenerationConfig struct {
	// Provider forces a single provider; otherwise Priority is walked.
	Provider string   `json:"provider"`
	Priority []string `json:"priority"`
	// Keys holds API keys by provider. Missing keys are read from the
	// environment.
	Keys map[string]string `json:"keys"`
	// Providers holds extra settings (model, base_url, temperature,
	// max_tokens, timeout) by provider.
	Providers map[string]map[string]any `json:"providers"`
}

// SetDefaults applies the default priority.
func (c *GenerationConfig) SetDefaults() {
	if len(c.Priority) == 0 {
		c.Priority = append([]string(nil), generation.DefaultPriority...)
	}
	if c.Keys == nil {
		c.Keys = map[string]string{}
	}
}

// Validate checks provider names against the registry.
func (c GenerationConfig) Validate() error {
	names := c.Priority
	if c.Provider != "" {
		names = []string{c.Provider}
	}
	known := map[string]bool{}
	for _, n := range generation.Providers() {
		known[n] = true
	}
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("unknown generation provider %q", n)
		}
	}
	return nil
}

// Order returns the providers to try.
func (c GenerationConfig) Order() []string {
	if c.Provider != "" {
		return []string{c.Provider}
	}
	return c.Priority
}

func (c *GenerationConfig) applyEnv(getenv func(string) string) {
	if c.Keys == nil {
		c.Keys = map[string]string{}
	}
	for name, key := range providerEnv {
		if strings.TrimSpace(c.Keys[name]) != "" {
			continue
		}
		if v := getenv(key); v != "" {
			c.Keys[name] = v
		}
	}
}
