package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/chevai-chat/internal/chat"
	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/hooks"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Inspect and manage stored conversations",
	}

	cmd.AddCommand(newChatRoomsCmd())
	cmd.AddCommand(newChatHistoryCmd())
	cmd.AddCommand(newChatPurgeCmd())
	return cmd
}

// withRouter runs fn against a router over the configured store, without
// a responder or network listener.
func withRouter(fn func(ctx context.Context, r *chat.Router, cfg config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	be, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	hookMgr := hooks.NewManager(log)
	hooks.RegisterConfig(hookMgr, cfg.Hooks)

	r := chat.NewRouter(be.messages, log,
		chat.WithHooks(hookMgr),
		chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
	)
	defer r.Close()
	return fn(context.Background(), r, cfg)
}

func newChatRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(func(ctx context.Context, r *chat.Router, _ config.Config) error {
				rooms, err := r.Rooms(ctx)
				if err != nil {
					return err
				}
				for _, room := range rooms {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %4d msg  last=%s (%s)\n",
						room.ConversationID, room.MessageCount,
						room.LastAt.Local().Format("2006-01-02 15:04"), room.LastSenderRole)
				}
				return nil
			})
		},
	}
}

func newChatHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <room>",
		Short: "Print the most recent messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(func(ctx context.Context, r *chat.Router, _ config.Config) error {
				msgs, err := r.History(ctx, args[0], limit)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					name := m.SenderName
					if name == "" {
						name = m.SenderID
					}
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-9s %s: %s\n",
						m.CreatedAt.Local().Format("15:04:05"), m.SenderRole, name, m.Body)
					if m.MediaURL != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "           (media: %s)\n", m.MediaURL)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of messages (default chat.historyLimit)")
	return cmd
}

func newChatPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <room>",
		Short: "Delete every message of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(func(ctx context.Context, r *chat.Router, _ config.Config) error {
				n, err := r.Purge(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d message(s) from %s\n", n, args[0])
				return nil
			})
		},
	}
}
