package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/chevai-chat/internal/responder"
)

func newAskCmd() *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Run the assistant once against the local catalog and print its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			be, err := openBackend(cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			contexts, err := newContexts(cfg.Context, log)
			if err != nil {
				return err
			}
			defer contexts.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := newResponder(cfg, be.products, contexts, log)
			reply, err := r.Respond(ctx, room, text)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Text)
			if reply.MediaURL != "" {
				fmt.Fprintf(out, "(media: %s)\n", reply.MediaURL)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[intent=%s provider=%s items=%d rejected=%d]\n",
				reply.Intent, responder.DisplayName(reply.Provider), len(reply.Items), reply.Rejected)
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "cli", "conversation id used for context")
	return cmd
}
