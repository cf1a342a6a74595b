// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Intake        IntakeConfig       `mapstructure:"intake"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// IntakeConfig drives the mail processing pass loop.
type IntakeConfig struct {
	PollInterval  int `mapstructure:"poll_interval"`  // milliseconds
	LookbackHours int `mapstructure:"lookback_hours"` // first-pass mail window
	CallTimeout   int `mapstructure:"call_timeout"`   // milliseconds, per collaborator call

	// Mail gateway exposing the fetched inbox over HTTP; transport
	// internals (IMAP auth etc.) live behind it.
	MailGatewayURL   string `mapstructure:"mail_gateway_url"`
	MailGatewayToken string `mapstructure:"mail_gateway_token"`
}

// EngineConfig holds practice matching settings.
type EngineConfig struct {
	Practices           []string `mapstructure:"practices"`
	MatchThreshold      float64  `mapstructure:"match_threshold"`
	TableMatchThreshold float64  `mapstructure:"table_match_threshold"`
	ScanLines           int      `mapstructure:"scan_lines"` // extra lines scanned after a keyword
	RulesPath           string   `mapstructure:"rules_path"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	ETAIndex   string   `mapstructure:"eta_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig holds settings for status-change dispatch.
type NotificationConfig struct {
	Webex struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
		RoomID  string `mapstructure:"room_id"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"webex"`

	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`

	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		TopicARN          string `mapstructure:"topic_arn"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`

	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
