package config

// Config is the root configuration for the chat server.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Chat      ChatConfig      `yaml:"chat,omitempty"`
	Context   ContextConfig   `yaml:"context,omitempty"`
	Responder ResponderConfig `yaml:"responder,omitempty"`
	Bus       BusConfig       `yaml:"bus,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int             `yaml:"port,omitempty"`
	Bind           string          `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth     `yaml:"auth,omitempty"`
	TLS            GatewayTLS      `yaml:"tls,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// GatewayAuth configures how support agents authenticate.
type GatewayAuth struct {
	Mode      string `yaml:"mode,omitempty"` // "none" | "token" | "password" | "jwt"
	Token     string `yaml:"token,omitempty"`
	Password  string `yaml:"password,omitempty"`
	JWTSecret string `yaml:"jwtSecret,omitempty"`
	JWTIssuer string `yaml:"jwtIssuer,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// RateLimitConfig bounds requests per client IP on the HTTP API.
type RateLimitConfig struct {
	Requests      int `yaml:"requests,omitempty"`
	WindowSeconds int `yaml:"windowSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// StoreConfig selects the message and catalog persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`
}

// ChatConfig tunes the session router.
type ChatConfig struct {
	HistoryLimit    int    `yaml:"historyLimit,omitempty"`
	ReplyDelayMinMs int    `yaml:"replyDelayMinMs,omitempty"`
	ReplyDelayMaxMs int    `yaml:"replyDelayMaxMs,omitempty"`
	SummonToken     string `yaml:"summonToken,omitempty"`
	AdminRoom       string `yaml:"adminRoom,omitempty"`
}

// ContextConfig tunes the conversation context store.
type ContextConfig struct {
	TTLMinutes           int `yaml:"ttlMinutes,omitempty"`
	SweepIntervalMinutes int `yaml:"sweepIntervalMinutes,omitempty"`
	MaxEntries           int `yaml:"maxEntries,omitempty"`
}

// ResponderConfig configures the automated responder and its model provider.
type ResponderConfig struct {
	Enabled        *bool         `yaml:"enabled,omitempty"`
	Provider       string        `yaml:"provider,omitempty"` // "gemini" | "claude" | "openai" | "ollama"
	Model          string        `yaml:"model,omitempty"`
	APIKey         string        `yaml:"apiKey,omitempty"`
	Endpoint       string        `yaml:"endpoint,omitempty"`
	Fallbacks      []string      `yaml:"fallbacks,omitempty"`
	MaxTokens      int           `yaml:"maxTokens,omitempty"`
	Temperature    *float64      `yaml:"temperature,omitempty"`
	TimeoutSeconds int           `yaml:"timeoutSeconds,omitempty"`
	Breaker        BreakerConfig `yaml:"breaker,omitempty"`
}

// BreakerConfig configures the circuit breaker around generation calls.
type BreakerConfig struct {
	MaxFailures     int `yaml:"maxFailures,omitempty"`
	OpenSeconds     int `yaml:"openSeconds,omitempty"`
	IntervalSeconds int `yaml:"intervalSeconds,omitempty"`
}

// BusConfig configures publishing persisted messages to NATS.
type BusConfig struct {
	NATSURL       string `yaml:"natsUrl,omitempty"`
	SubjectPrefix string `yaml:"subjectPrefix,omitempty"`
}

// HooksConfig defines shell commands run on chat events.
type HooksConfig struct {
	MessagePersisted []HookEntry `yaml:"messagePersisted,omitempty"`
	AgentPresence    []HookEntry `yaml:"agentPresence,omitempty"`
	RoomPurged       []HookEntry `yaml:"roomPurged,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// ResponderEnabled reports whether the automated responder should run.
func (c ResponderConfig) ResponderEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
