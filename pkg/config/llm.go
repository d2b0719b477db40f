package config

import (
	"fmt"
	"os"
	"sync"
)

const (
	// SectionIDLLM is the identifier for the LLM settings section
	SectionIDLLM = "llm"

	DefaultModel           = "gpt-4o"
	DefaultMaxPromptTokens = 24000
	DefaultActCacheSize    = 256
)

// LLMSection configures the model that interprets act and extract
// instructions.
type LLMSection struct {
	Model   string
	BaseURL string

	// APIKey is only a fallback; the credential sent to /init wins.
	APIKey string

	// MaxPromptTokens bounds the page digest sent with each instruction.
	MaxPromptTokens int

	// ActCacheSize bounds the number of cached act plans.
	ActCacheSize int

	mu sync.RWMutex
}

// NewLLMSection creates a new LLM section with default settings.
func NewLLMSection() *LLMSection {
	s := &LLMSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *LLMSection) ID() string {
	return SectionIDLLM
}

// Title returns the section title.
func (s *LLMSection) Title() string {
	return "LLM Settings"
}

// Description returns the section description.
func (s *LLMSection) Description() string {
	return "Model used to interpret act and extract instructions. The api_key here is used only when /init is called without one."
}

// Data returns the current configuration data.
func (s *LLMSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"model":             s.Model,
		"base_url":          s.BaseURL,
		"api_key":           s.APIKey,
		"max_prompt_tokens": s.MaxPromptTokens,
		"act_cache_size":    s.ActCacheSize,
	}
}

// SetData updates the configuration from the provided data.
func (s *LLMSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if model, ok := asString(data["model"]); ok {
		s.Model = model
	}
	if baseURL, ok := asString(data["base_url"]); ok {
		s.BaseURL = baseURL
	}
	if apiKey, ok := asString(data["api_key"]); ok {
		s.APIKey = apiKey
	}
	tokens, ok, err := asInt(data["max_prompt_tokens"])
	if err != nil {
		return fmt.Errorf("max_prompt_tokens: %w", err)
	}
	if ok {
		s.MaxPromptTokens = tokens
	}
	size, ok, err := asInt(data["act_cache_size"])
	if err != nil {
		return fmt.Errorf("act_cache_size: %w", err)
	}
	if ok {
		s.ActCacheSize = size
	}
	return nil
}

// Validate validates the current configuration.
func (s *LLMSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.MaxPromptTokens <= 0 {
		return fmt.Errorf("max_prompt_tokens must be positive")
	}
	if s.ActCacheSize < 0 {
		return fmt.Errorf("act_cache_size must not be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *LLMSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = DefaultModel
	s.BaseURL = ""
	s.APIKey = ""
	s.MaxPromptTokens = DefaultMaxPromptTokens
	s.ActCacheSize = DefaultActCacheSize
}

// GetModel returns the configured model name.
func (s *LLMSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// GetBaseURL returns the configured base URL, falling back to
// OPENAI_BASE_URL.
func (s *LLMSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return os.Getenv("OPENAI_BASE_URL")
}

// GetMaxPromptTokens returns the digest token budget.
func (s *LLMSection) GetMaxPromptTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxPromptTokens
}

// GetActCacheSize returns the act plan cache bound.
func (s *LLMSection) GetActCacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActCacheSize
}

// ResolveAPIKey picks the credential for a new session:
// the init request value > config file > OPENAI_API_KEY.
func (s *LLMSection) ResolveAPIKey(credential string) string {
	if credential != "" {
		return credential
	}
	s.mu.RLock()
	apiKey := s.APIKey
	s.mu.RUnlock()
	if apiKey != "" {
		return apiKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
