// Package config provides the configuration schema, loader, runtime store,
// and file watcher for the voxway server.
package config

// LogLevel controls log verbosity for the voxway server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler flavour.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// Config is the root configuration structure for voxway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Logging      LoggingConfig           `yaml:"logging"`
	Modules      map[string]ModuleConfig `yaml:"modules"`
	Conversation ConversationConfig      `yaml:"conversation"`
}

// ServerConfig holds network settings for the voxway server.
type ServerConfig struct {
	// ListenAddr is the TCP address the websocket server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// AdminAddr is the TCP address serving /metrics, /healthz and /readyz.
	// When empty the admin endpoints are not served.
	AdminAddr string `yaml:"admin_addr"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// LoggingConfig controls the slog handler built at startup.
type LoggingConfig struct {
	// Level controls verbosity. Defaults to info.
	Level LogLevel `yaml:"level"`

	// Format selects text or json output. Defaults to text.
	Format LogFormat `yaml:"format"`
}

// ModuleConfig describes one capability module in the top-level `modules`
// mapping, keyed by role ("asr", "llm", "tts", "vad").
type ModuleConfig struct {
	// AdapterType selects the registered adapter implementation
	// (e.g., "openai", "elevenlabs", "energy").
	AdapterType string `yaml:"adapter_type"`

	// EnableModule toggles the module. Absent means enabled.
	EnableModule *bool `yaml:"enable_module"`

	// Config holds adapter-specific parameters (API keys, model names,
	// thresholds). Values may be strings, numbers, booleans, or nested maps.
	Config map[string]any `yaml:"config"`
}

// Enabled reports whether the module should be instantiated.
func (m ModuleConfig) Enabled() bool {
	return m.EnableModule == nil || *m.EnableModule
}

// ConversationConfig holds dialogue-level tunables.
type ConversationConfig struct {
	// SystemPrompt is injected as the pinned first history message of every
	// session.
	SystemPrompt string `yaml:"system_prompt"`

	// ConcatOnInterrupt controls whether an interrupting utterance is
	// concatenated onto the previous one before reaching the LLM.
	// Absent means enabled.
	ConcatOnInterrupt *bool `yaml:"concat_on_interrupt"`
}

// Concat reports the effective concatenation setting.
func (c ConversationConfig) Concat() bool {
	return c.ConcatOnInterrupt == nil || *c.ConcatOnInterrupt
}
