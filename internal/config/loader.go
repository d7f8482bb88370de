package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials be stored as ${ENV_VAR} references.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	cfg.Gateway.Auth.JWTSecret = expandEnvVars(cfg.Gateway.Auth.JWTSecret)
	cfg.Responder.APIKey = expandEnvVars(cfg.Responder.APIKey)
	cfg.Bus.NATSURL = expandEnvVars(cfg.Bus.NATSURL)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 4000
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Gateway.RateLimit.Requests == 0 {
		cfg.Gateway.RateLimit.Requests = 120
	}
	if cfg.Gateway.RateLimit.WindowSeconds == 0 {
		cfg.Gateway.RateLimit.WindowSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Chat.HistoryLimit == 0 {
		cfg.Chat.HistoryLimit = 50
	}
	if cfg.Chat.ReplyDelayMinMs == 0 {
		cfg.Chat.ReplyDelayMinMs = 1500
	}
	if cfg.Chat.ReplyDelayMaxMs == 0 {
		cfg.Chat.ReplyDelayMaxMs = 3500
	}
	if cfg.Chat.SummonToken == "" {
		cfg.Chat.SummonToken = "@ai"
	}
	if cfg.Chat.AdminRoom == "" {
		cfg.Chat.AdminRoom = "admin-room"
	}
	if cfg.Context.TTLMinutes == 0 {
		cfg.Context.TTLMinutes = 10
	}
	if cfg.Context.SweepIntervalMinutes == 0 {
		cfg.Context.SweepIntervalMinutes = 5
	}
	if cfg.Context.MaxEntries == 0 {
		cfg.Context.MaxEntries = 10000
	}
	if cfg.Responder.Provider == "" {
		cfg.Responder.Provider = "gemini"
	}
	if cfg.Responder.Model == "" {
		cfg.Responder.Model = "gemini-2.0-flash"
	}
	if cfg.Responder.MaxTokens == 0 {
		cfg.Responder.MaxTokens = 512
	}
	if cfg.Responder.TimeoutSeconds == 0 {
		cfg.Responder.TimeoutSeconds = 30
	}
	if cfg.Responder.Breaker.MaxFailures == 0 {
		cfg.Responder.Breaker.MaxFailures = 5
	}
	if cfg.Responder.Breaker.OpenSeconds == 0 {
		cfg.Responder.Breaker.OpenSeconds = 30
	}
	if cfg.Responder.Breaker.IntervalSeconds == 0 {
		cfg.Responder.Breaker.IntervalSeconds = 60
	}
	if cfg.Bus.SubjectPrefix == "" {
		cfg.Bus.SubjectPrefix = "chat"
	}
}

// applyEnvOverrides reads CHEVAI_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHEVAI_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("CHEVAI_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("CHEVAI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CHEVAI_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CHEVAI_RESPONDER_PROVIDER"); v != "" {
		cfg.Responder.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("CHEVAI_RESPONDER_MODEL"); v != "" {
		cfg.Responder.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Responder.APIKey == "" && cfg.Responder.Provider == "gemini" {
		cfg.Responder.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("CHEVAI_NATS_URL"); v != "" {
		cfg.Bus.NATSURL = v
	}
}
