package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/chevai-chat/internal/catalog"
	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/convctx"
	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/llm"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/responder"
	"github.com/soyeahso/chevai-chat/internal/store"
)

// productCatalog is a catalog the CLI can also write to.
type productCatalog interface {
	catalog.Catalog
	Upsert(ctx context.Context, item domain.CatalogItem) error
}

// backend holds the message and product stores selected by store.driver.
type backend struct {
	messages chat.MessageStore
	products productCatalog
	db       *store.DB
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

func openBackend(cfg config.Config, log *logging.Logger) (*backend, error) {
	if cfg.Store.Driver == "memory" {
		log.Info().Msg("using in-memory message store")
		return &backend{
			messages: store.NewMemoryMessageStore(),
			products: catalog.NewMemory(),
		}, nil
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dbPath = paths.DatabasePath()
	}
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("using SQLite store")
	return &backend{
		messages: store.NewMessageStore(db),
		products: store.NewProductStore(db),
		db:       db,
	}, nil
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func newContexts(cfg config.ContextConfig, log *logging.Logger) (*convctx.Store, error) {
	return convctx.New(
		convctx.WithTTL(time.Duration(cfg.TTLMinutes)*time.Minute),
		convctx.WithSweepInterval(time.Duration(cfg.SweepIntervalMinutes)*time.Minute),
		convctx.WithMaxEntries(cfg.MaxEntries),
		convctx.WithLogger(log),
	)
}

// newGenerationClient returns the failover client over every provider that
// has credentials, or nil when none does.
func newGenerationClient(cfg config.ResponderConfig, log *logging.Logger) llm.Client {
	registry := llm.NewRegistryFromConfig(cfg, log)
	providers := registry.List()
	if len(providers) == 0 {
		log.Warn().Str("provider", cfg.Provider).Msg("no generation provider available, automated replies will apologize")
		return nil
	}
	log.Info().Strs("providers", providers).Msg("generation providers available")

	return llm.NewFailoverClient(registry, strings.ToLower(cfg.Provider), cfg.Fallbacks, log)
}

func newResponder(cfg config.Config, products catalog.Catalog, contexts *convctx.Store, log *logging.Logger) *responder.Responder {
	rc := cfg.Responder
	return responder.New(
		newGenerationClient(rc, log),
		catalog.NewLookup(products, log),
		contexts,
		responder.Config{
			Model:              rc.Model,
			MaxTokens:          rc.MaxTokens,
			Temperature:        rc.Temperature,
			Timeout:            time.Duration(rc.TimeoutSeconds) * time.Second,
			BreakerMaxFailures: rc.Breaker.MaxFailures,
			BreakerOpen:        time.Duration(rc.Breaker.OpenSeconds) * time.Second,
			BreakerInterval:    time.Duration(rc.Breaker.IntervalSeconds) * time.Second,
		},
		log,
	)
}
