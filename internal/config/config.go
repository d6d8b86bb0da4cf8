package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration. It is built once at startup and
// read-only afterwards.
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort int

	// Webhook authentication
	WebhookSecret string

	// Jira configuration (used by the bridge subprocess env and the retriever)
	JiraBaseURL    string
	JiraUserEmail  string
	JiraAPIToken   string
	JiraStateField string

	// Bridge configuration
	BridgeCommand   string
	BridgeArgs      []string
	BridgeTimeout   time.Duration
	BridgeReconnect bool

	// LLM configuration
	LLMProvider    string // "openai" or "azure"
	LLMModel       string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Agent loop configuration
	MaxAgentTurns    int
	ToolFailureLimit int

	// Context retrieval
	RetrievalEnabled bool

	// App
	LogLevel         string
	DomainConfigPath string
}

// New creates a new configuration with values from environment variables.
func New() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)

	v.SetDefault("WEBHOOK_SECRET", "change-me")

	v.SetDefault("JIRA_BASE_URL", "https://your-org.atlassian.net")
	v.SetDefault("JIRA_USER_EMAIL", "")
	v.SetDefault("JIRA_API_TOKEN", "")
	v.SetDefault("JIRA_REFINEMENT_STATE_FIELD", "customfield_10050")

	v.SetDefault("BRIDGE_COMMAND", "uvx")
	v.SetDefault("BRIDGE_ARGS", "mcp-atlassian")
	v.SetDefault("BRIDGE_TIMEOUT", "30s")
	v.SetDefault("BRIDGE_RECONNECT", true)

	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("LLM_MODEL", "gpt-4o")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_MAX_TOKENS", 4000)
	v.SetDefault("LLM_TEMPERATURE", 0.3)
	v.SetDefault("LLM_TIMEOUT", "60s")

	v.SetDefault("MAX_AGENT_TURNS", 8)
	v.SetDefault("TOOL_FAILURE_LIMIT", 3)

	v.SetDefault("RETRIEVAL_ENABLED", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DOMAIN_CONFIG_PATH", "domain_config.yaml")

	return &Config{
		ServerHost: v.GetString("SERVER_HOST"),
		ServerPort: v.GetInt("SERVER_PORT"),

		WebhookSecret: v.GetString("WEBHOOK_SECRET"),

		JiraBaseURL:    v.GetString("JIRA_BASE_URL"),
		JiraUserEmail:  v.GetString("JIRA_USER_EMAIL"),
		JiraAPIToken:   v.GetString("JIRA_API_TOKEN"),
		JiraStateField: v.GetString("JIRA_REFINEMENT_STATE_FIELD"),

		BridgeCommand:   v.GetString("BRIDGE_COMMAND"),
		BridgeArgs:      strings.Fields(v.GetString("BRIDGE_ARGS")),
		BridgeTimeout:   v.GetDuration("BRIDGE_TIMEOUT"),
		BridgeReconnect: v.GetBool("BRIDGE_RECONNECT"),

		LLMProvider:    v.GetString("LLM_PROVIDER"),
		LLMModel:       v.GetString("LLM_MODEL"),
		LLMAPIKey:      v.GetString("LLM_API_KEY"),
		LLMBaseURL:     v.GetString("LLM_BASE_URL"),
		LLMMaxTokens:   v.GetInt("LLM_MAX_TOKENS"),
		LLMTemperature: v.GetFloat64("LLM_TEMPERATURE"),
		LLMTimeout:     v.GetDuration("LLM_TIMEOUT"),

		MaxAgentTurns:    v.GetInt("MAX_AGENT_TURNS"),
		ToolFailureLimit: v.GetInt("TOOL_FAILURE_LIMIT"),

		RetrievalEnabled: v.GetBool("RETRIEVAL_ENABLED"),

		LogLevel:         v.GetString("LOG_LEVEL"),
		DomainConfigPath: v.GetString("DOMAIN_CONFIG_PATH"),
	}
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// JiraConfigured reports whether Jira credentials are present.
func (c *Config) JiraConfigured() bool {
	return c.JiraAPIToken != ""
}

// LLMConfigured reports whether an LLM API key is present.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}
