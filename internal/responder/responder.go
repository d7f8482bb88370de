// Package responder produces automated replies to customer messages,
// grounded in a live catalog lookup and the conversation's recent context.
package responder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/soyeahso/chevai-chat/internal/catalog"
	"github.com/soyeahso/chevai-chat/internal/convctx"
	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/llm"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/metrics"
)

// Fixed replies.
const (
	Greeting = "Xin chào! 👋 Chevai Fashion rất vui được hỗ trợ bạn! Bạn muốn tìm sản phẩm gì ạ? 😊"
	Apology  = "Xin lỗi, mình đang gặp sự cố nhỏ! 😅 Thử hỏi lại hoặc liên hệ admin nhé! 🛠️"
)

// ConfirmWindow bounds how long after an offer a bare "có" still refers to it.
const ConfirmWindow = 5 * time.Minute

var tracer = otel.Tracer("github.com/soyeahso/chevai-chat/internal/responder")

// offerPattern detects replies that offer to show a picture.
var offerPattern = regexp.MustCompile(`(?i)(xem ảnh|gửi ảnh|hình ảnh|muốn xem|xem hình)`)

// Reply is the automated answer to one customer message.
type Reply struct {
	Text     string
	MediaURL string
	Intent   Intent
	Items    []domain.CatalogItem // items the reply refers to
	Provider string
	Rejected int // product links replaced during grounding
}

// Config tunes generation.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration

	BreakerMaxFailures int
	BreakerOpen        time.Duration
	BreakerInterval    time.Duration
}

// Responder turns customer messages into replies.
type Responder struct {
	client   llm.Client
	lookup   *catalog.Lookup
	contexts *convctx.Store
	breaker  *gobreaker.CircuitBreaker
	cfg      Config
	log      *logging.Logger
	now      func() time.Time
}

// New creates a Responder. client may be nil, in which case every generated
// turn answers with the apology text.
func New(client llm.Client, lookup *catalog.Lookup, contexts *convctx.Store, cfg Config, log *logging.Logger) *Responder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerMaxFailures <= 0 {
		cfg.BreakerMaxFailures = 5
	}

	r := &Responder{
		client:   client,
		lookup:   lookup,
		contexts: contexts,
		cfg:      cfg,
		log:      log.Sub("responder"),
		now:      time.Now,
	}

	maxFailures := uint32(cfg.BreakerMaxFailures)
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "responder",
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !llm.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return r
}

// Provider returns the name of the configured generation provider.
func (r *Responder) Provider() string {
	if r.client == nil {
		return "none"
	}
	return r.client.Name()
}

// Respond produces the reply to text for a conversation.
//
// A greeting gets the fixed greeting. A confirmation that follows a recent
// offer gets the offered item's picture. Everything else goes through a
// catalog lookup and generation, and the generated text is grounded before
// it is returned. Transient generation failures return a *TransientError;
// other failures return the Apology text and a nil error.
func (r *Responder) Respond(ctx context.Context, conversationID, text string) (Reply, error) {
	start := r.now()
	ctx, span := tracer.Start(ctx, "responder.Respond")
	defer span.End()

	intent := Classify(text)
	span.SetAttributes(
		attribute.String("chat.conversation_id", conversationID),
		attribute.String("responder.intent", intent.String()),
	)

	reply, err := r.respond(ctx, conversationID, text, intent)
	reply.Intent = intent
	if reply.Provider == "" {
		reply.Provider = r.Provider()
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "transient"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case reply.Text == Apology:
		outcome = "apology"
	}
	metrics.RecordReply(intent.String(), outcome, reply.Provider, r.now().Sub(start))
	return reply, err
}

func (r *Responder) respond(ctx context.Context, conversationID, text string, intent Intent) (Reply, error) {
	if intent == IntentGreeting {
		return Reply{Text: Greeting}, nil
	}

	prior, hasPrior := r.contexts.Get(conversationID)

	if intent == IntentImageConfirmation && hasPrior && len(prior.Items) > 0 &&
		prior.RecentAction(r.now(), ConfirmWindow) {
		item := confirmedItem(prior)
		r.contexts.Set(conversationID, convctx.Context{
			Items:      prior.Items,
			LastAction: convctx.ActionNone,
			LastQuery:  prior.LastQuery,
			Provider:   prior.Provider,
		})
		r.log.Debug().Str("room", conversationID).Str("product", item.ID).Msg("answered confirmation from context")
		return mediaReply(item), nil
	}

	found := r.lookup.Find(ctx, text)

	resp, err := r.generate(ctx, BuildPrompt(text, found.Items))
	if err != nil {
		if isTransient(err) {
			r.log.Warn().Err(err).Str("room", conversationID).Msg("generation unavailable")
			return Reply{}, &TransientError{Provider: r.Provider(), Err: err}
		}
		r.log.Error().Err(err).Str("room", conversationID).Msg("generation failed")
		return Reply{Text: Apology}, nil
	}

	allowed := make(map[string]bool, len(found.Items)+len(prior.Items))
	for _, it := range found.Items {
		allowed[it.ID] = true
	}
	if hasPrior {
		for _, it := range prior.Items {
			allowed[it.ID] = true
		}
	}

	grounded, rejected := Ground(strings.TrimSpace(resp.Content), allowed)
	if rejected > 0 {
		metrics.GroundingRejectsTotal.Add(float64(rejected))
		r.log.Warn().Int("rejected", rejected).Str("room", conversationID).Msg("replaced product links outside the lookup set")
	}
	if grounded == "" {
		return Reply{Text: Apology}, nil
	}

	provider := resp.Provider
	if provider == "" {
		provider = r.Provider()
	}

	reply := Reply{Text: grounded, Provider: provider, Rejected: rejected}
	if len(found.Items) > 0 {
		reply.Items = SelectMentioned(grounded, found.Items, intent)

		action := convctx.ActionMentionedItem
		if offerPattern.MatchString(grounded) {
			action = convctx.ActionOfferedMedia
		}
		r.contexts.Set(conversationID, convctx.Context{
			Items:      reply.Items,
			LastAction: action,
			LastQuery:  text,
			Provider:   provider,
		})
	}
	return reply, nil
}

// generate runs one completion through the circuit breaker. There is no retry.
func (r *Responder) generate(ctx context.Context, prompt string) (*llm.CompletionResponse, error) {
	if r.client == nil {
		return nil, errors.New("no generation provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(prompt)
	req.Model = r.cfg.Model
	req.MaxTokens = r.cfg.MaxTokens
	req.Temperature = r.cfg.Temperature

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*llm.CompletionResponse), nil
}

func isTransient(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		llm.IsTransient(err)
}

// confirmedItem picks the item a confirmation refers to, preferring the
// kind of garment the original query asked about.
func confirmedItem(c convctx.Context) domain.CatalogItem {
	if len(c.Items) > 1 && c.LastQuery != "" {
		switch {
		case asksForShirt(c.LastQuery):
			for _, it := range c.Items {
				if !it.BottomWear() {
					return it
				}
			}
		case asksForPants(c.LastQuery):
			for _, it := range c.Items {
				if it.BottomWear() {
					return it
				}
			}
		}
	}
	return c.Items[0]
}

func mediaReply(item domain.CatalogItem) Reply {
	if item.Image == "" {
		return Reply{
			Text:  fmt.Sprintf("Sản phẩm %s hiện chưa có ảnh, bạn xem chi tiết trong trang sản phẩm nhé! 😊", item.Link()),
			Items: []domain.CatalogItem{item},
		}
	}
	return Reply{
		Text:     fmt.Sprintf("Đây là ảnh của %s nè bạn! 📸 Giá: %s", item.Link(), item.PriceLabel()),
		MediaURL: item.Image,
		Items:    []domain.CatalogItem{item},
	}
}

// DisplayName renders a provider name for the automated sender label.
func DisplayName(provider string) string {
	switch provider {
	case "gemini":
		return "Gemini AI"
	case "claude":
		return "Claude AI"
	case "openai":
		return "OpenAI"
	case "ollama":
		return "Ollama"
	case "", "none":
		return "Auto"
	default:
		return provider
	}
}
