package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/chevai-chat/internal/bus"
	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/gateway"
	"github.com/soyeahso/chevai-chat/internal/hooks"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/routing"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the chat gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	cmd.AddCommand(newGatewayTokenCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port       int
		bind       string
		noResponse bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			// --log-level wins over the config file.
			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			logOpts := logging.Options{Level: level, Style: cfg.Logging.ConsoleStyle}
			if cfg.Logging.File != "" {
				f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				logOpts.File = f
			}
			log = logging.NewWithOptions(logOpts)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			be, err := openBackend(cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			contexts, err := newContexts(cfg.Context, log)
			if err != nil {
				return fmt.Errorf("creating context store: %w", err)
			}
			defer contexts.Close()

			hookMgr := hooks.NewManager(log)
			if n := hooks.RegisterConfig(hookMgr, cfg.Hooks); n > 0 {
				log.Info().Int("hooks", n).Msg("command hooks registered")
			}

			var publisher bus.Publisher = bus.Nop{}
			if cfg.Bus.NATSURL != "" {
				nc, err := bus.Connect(cfg.Bus.NATSURL, cfg.Bus.SubjectPrefix, log)
				if err != nil {
					return fmt.Errorf("connecting to NATS: %w", err)
				}
				publisher = nc
			}
			defer publisher.Close()

			opts := []chat.Option{
				chat.WithContexts(contexts),
				chat.WithSelector(routing.NewSelector(cfg.Chat.SummonToken)),
				chat.WithHooks(hookMgr),
				chat.WithPublisher(publisher),
				chat.WithAdminRoom(cfg.Chat.AdminRoom),
				chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
				chat.WithReplyDelay(chat.JitterDelay(
					time.Duration(cfg.Chat.ReplyDelayMinMs)*time.Millisecond,
					time.Duration(cfg.Chat.ReplyDelayMaxMs)*time.Millisecond,
				)),
			}
			if cfg.Responder.ResponderEnabled() && !noResponse {
				opts = append(opts, chat.WithResponder(newResponder(cfg, be.products, contexts, log)))
			} else {
				log.Info().Msg("automated responder disabled")
			}

			router := chat.NewRouter(be.messages, log, opts...)
			defer router.Close()

			srv := gateway.New(cfg, router, log, gateway.WithHooks(hookMgr))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().BoolVar(&noResponse, "no-responder", false, "run without automated replies")

	return cmd
}

func newGatewayTokenCmd() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed agent token for jwt auth mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			auth := gateway.ResolveAuth(cfg.Gateway.Auth)
			if auth.Mode != "jwt" {
				return fmt.Errorf("gateway auth mode is %q, tokens are only used in jwt mode", auth.Mode)
			}
			token, err := gateway.IssueAgentToken(auth.JWTSecret, auth.JWTIssuer, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "agent display name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")

	return cmd
}
