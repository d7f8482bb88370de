package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
			})
		}
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, []string{"auto", "lan", "loopback", "custom"})
	oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"none", "token", "password", "jwt"})

	switch cfg.Gateway.Auth.Mode {
	case "jwt":
		if cfg.Gateway.Auth.JWTSecret == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.auth.jwtSecret",
				Message: "required when auth mode is jwt",
			})
		}
	case "password":
		if cfg.Gateway.Auth.Password == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.auth.password",
				Message: "required when auth mode is password",
			})
		}
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	oneOf("logging.level", cfg.Logging.Level, validLogLevels)
	oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	oneOf("store.driver", cfg.Store.Driver, []string{"sqlite", "memory"})

	if cfg.Chat.HistoryLimit < 0 || cfg.Chat.HistoryLimit > 200 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.historyLimit",
			Message: fmt.Sprintf("must be 0-200, got %d", cfg.Chat.HistoryLimit),
		})
	}
	if cfg.Chat.ReplyDelayMinMs > cfg.Chat.ReplyDelayMaxMs {
		issues = append(issues, ValidationIssue{
			Path:    "chat.replyDelayMinMs",
			Message: "must not exceed replyDelayMaxMs",
		})
	}

	if cfg.Context.TTLMinutes < 0 || cfg.Context.SweepIntervalMinutes < 0 || cfg.Context.MaxEntries < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "context",
			Message: "ttlMinutes, sweepIntervalMinutes and maxEntries must not be negative",
		})
	}

	validProviders := []string{"gemini", "claude", "openai", "ollama"}
	oneOf("responder.provider", cfg.Responder.Provider, validProviders)
	for i, fb := range cfg.Responder.Fallbacks {
		oneOf(fmt.Sprintf("responder.fallbacks[%d]", i), fb, validProviders)
	}
	if cfg.Responder.Temperature != nil && (*cfg.Responder.Temperature < 0 || *cfg.Responder.Temperature > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "responder.temperature",
			Message: fmt.Sprintf("must be 0-2, got %v", *cfg.Responder.Temperature),
		})
	}

	return issues
}
