package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/chevai-chat/internal/config"
)

// DefaultCommandTimeout bounds a hook command that sets no timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs entry.Command through sh -c
// with the JSON-encoded payload on stdin.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(input)
		cmd.Env = append(cmd.Environ(), "CHEVAI_HOOK_EVENT="+p.Event)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

// RegisterConfig registers the shell hooks from cfg and returns how many
// were added.
func RegisterConfig(m *Manager, cfg config.HooksConfig) int {
	groups := []struct {
		event   string
		entries []config.HookEntry
	}{
		{EventMessagePersisted, cfg.MessagePersisted},
		{EventAgentPresence, cfg.AgentPresence},
		{EventRoomPurged, cfg.RoomPurged},
	}

	n := 0
	for _, g := range groups {
		for i, entry := range g.entries {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			m.On(g.event, fmt.Sprintf("config:%s:%d", g.event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
