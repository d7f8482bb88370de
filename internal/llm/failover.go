package llm

import (
	"context"

	"github.com/soyeahso/chevai-chat/internal/logging"
)

// FailoverClient tries the primary provider first, then the fallbacks in
// order, moving on only when a provider fails transiently. It makes one
// attempt per provider.
type FailoverClient struct {
	registry  *Registry
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a failover client over a registry.
func NewFailoverClient(registry *Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the primary provider name.
func (f *FailoverClient) Name() string { return f.primary }

// Complete tries each provider until one answers or a failure is not transient.
func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	models := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	tried := make(map[Client]bool)
	for _, model := range models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}
		if tried[client] {
			continue
		}
		tried[client] = true

		resp, err := client.Complete(ctx, req)
		if err == nil {
			resp.Provider = client.Name()
			return resp, nil
		}

		lastErr = err
		if !IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		f.log.Warn().Str("provider", client.Name()).Err(err).Msg("transient error, trying next provider")
	}

	return nil, lastErr
}
