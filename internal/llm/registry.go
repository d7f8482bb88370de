package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/logging"
)

// Registry manages provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// defaultModels is used for fallback providers, which have no model of their own in config.
var defaultModels = map[string]string{
	"gemini": "gemini-2.0-flash",
	"claude": "claude-3-5-haiku-latest",
	"openai": "gpt-4o-mini",
	"ollama": "llama3",
}

// keyEnv names the environment variable a fallback provider reads its key from.
var keyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"openai": "OPENAI_API_KEY",
}

// NewRegistryFromConfig builds a Registry holding the configured primary
// provider and any fallbacks that have credentials available. The primary
// provider becomes the registry fallback.
func NewRegistryFromConfig(cfg config.ResponderConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	primary := strings.ToLower(cfg.Provider)
	if c := newProvider(primary, cfg.APIKey, cfg.Model, cfg.Endpoint); c != nil {
		reg.Register(primary, c)
		reg.SetFallback(primary)
		if cfg.Model != "" {
			reg.Alias(cfg.Model, primary)
		}
	} else {
		reg.log.Warn().Str("provider", primary).Msg("primary provider has no credentials, responder will use fallbacks only")
	}

	for _, name := range cfg.Fallbacks {
		name = strings.ToLower(name)
		if _, exists := reg.clients[name]; exists {
			continue
		}
		if c := newProvider(name, os.Getenv(keyEnv[name]), defaultModels[name], ""); c != nil {
			reg.Register(name, c)
			reg.Alias(defaultModels[name], name)
		}
	}

	return reg
}

// newProvider returns nil when the provider is unknown or lacks credentials.
func newProvider(name, apiKey, model, endpoint string) Client {
	apiKey = strings.TrimSpace(apiKey)
	if model == "" {
		model = defaultModels[name]
	}

	switch name {
	case "gemini":
		if apiKey == "" {
			return nil
		}
		return NewGeminiAPIClient(apiKey, model, endpoint)
	case "claude":
		if apiKey == "" {
			return nil
		}
		return NewClaudeAPIClient(apiKey, model, endpoint)
	case "openai":
		c, err := NewOpenAIClient(apiKey, model, endpoint)
		if err != nil {
			return nil
		}
		return c
	case "ollama":
		return NewOllamaAPIClient(endpoint, model)
	default:
		return nil
	}
}
