package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/chevai-chat/internal/config"
	"github.com/soyeahso/chevai-chat/internal/gateway"
	"github.com/soyeahso/chevai-chat/internal/llm"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and probe the running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (commit %s)\n\n", version.Name, version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			auth := gateway.ResolveAuth(cfg.Gateway.Auth)
			fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, auth.Mode, cfg.Gateway.TLS.Enabled)

			storePath := cfg.Store.Path
			if storePath == "" && cfg.Store.Driver == "sqlite" {
				storePath = paths.DatabasePath()
			}
			fmt.Fprintf(out, "Store:     driver=%s %s\n", cfg.Store.Driver, storePath)
			fmt.Fprintf(out, "Chat:      summon=%s adminRoom=%s history=%d delay=%d-%dms\n",
				cfg.Chat.SummonToken, cfg.Chat.AdminRoom, cfg.Chat.HistoryLimit,
				cfg.Chat.ReplyDelayMinMs, cfg.Chat.ReplyDelayMaxMs)

			if cfg.Responder.ResponderEnabled() {
				providers := llm.NewRegistryFromConfig(cfg.Responder, logging.New(nil, "silent")).List()
				if len(providers) > 0 {
					fmt.Fprintf(out, "Responder: provider=%s model=%s available=%s\n",
						cfg.Responder.Provider, cfg.Responder.Model, strings.Join(providers, ", "))
				} else {
					fmt.Fprintf(out, "Responder: provider=%s (no credentials)\n", cfg.Responder.Provider)
				}
			} else {
				fmt.Fprintln(out, "Responder: disabled")
			}

			if cfg.Bus.NATSURL != "" {
				fmt.Fprintf(out, "Bus:       %s subjects=%s.>\n", cfg.Bus.NATSURL, cfg.Bus.SubjectPrefix)
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			fmt.Fprintln(out)
			health, err := probeHealth(cmd.Context(), cfg.Gateway)
			if err != nil {
				fmt.Fprintf(out, "Running:   no (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "Running:   yes version=%s connections=%d agents=%d uptime=%s\n",
				health.Version, health.Connections, health.Agents, health.Uptime)
			return nil
		},
	}

	return cmd
}

// probeHealth asks a gateway on this host for its /health report.
func probeHealth(ctx context.Context, gw config.GatewayConfig) (*gateway.HealthResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	scheme := "http"
	if gw.TLS.Enabled {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://127.0.0.1:%d/health", scheme, gw.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}
