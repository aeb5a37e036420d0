package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

// Publisher kinds.
const (
	PublisherSlack  = "slack"
	PublisherPubSub = "pubsub"
	PublisherStdout = "stdout"
)

// Environment variables read by ApplyEnvironment. The first three match the
// variable names used by existing .env files.
const (
	EnvShodanAPIKey  = "SHODAN_API"
	EnvSlackToken    = "SLACK_BOT_TOKEN"
	EnvSlackChannel  = "SLACK_CHANNEL"
	EnvPublishKind   = "NOTIFIER_PUBLISH_KIND"
	EnvPubSubProject = "NOTIFIER_PUBSUB_PROJECT_ID"
	EnvPubSubTopic   = "NOTIFIER_PUBSUB_TOPIC_ID"
	EnvPushgateway   = "NOTIFIER_PUSHGATEWAY_URL"
)

// Config represents the complete notifier configuration
type Config struct {
	Targets     TargetsConfig     `yaml:"targets" json:"targets"`
	Lookup      LookupConfig      `yaml:"lookup" json:"lookup"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	Diff        DiffConfig        `yaml:"diff" json:"diff"`
	Report      ReportConfig      `yaml:"report" json:"report"`
	Publish     PublishConfig     `yaml:"publish" json:"publish"`
	Schedule    ScheduleConfig    `yaml:"schedule" json:"schedule"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Credentials CredentialsConfig `yaml:"credentials,omitempty" json:"-"`
}

// TargetsConfig points at the newline-delimited address list.
type TargetsConfig struct {
	File string `yaml:"file" json:"file" validate:"required"`
}

// LookupConfig holds host lookup API settings
type LookupConfig struct {
	// Base URL of the Shodan REST API
	BaseURL string `yaml:"base_url" json:"base_url" validate:"required,url"`

	// Minimum time between two consecutive lookups
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval" validate:"gte=0"`

	// Per-request timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Ask the API for the reduced host document
	Minify bool `yaml:"minify" json:"minify"`
}

// StoreConfig holds snapshot persistence settings
type StoreConfig struct {
	LatestPath string `yaml:"latest_path" json:"latest_path" validate:"required"`
	ArchiveDir string `yaml:"archive_dir" json:"archive_dir" validate:"required"`
}

// DiffConfig toggles the incremental report.
type DiffConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ReportConfig holds report rendering settings
type ReportConfig struct {
	Title    string `yaml:"title" json:"title" validate:"required"`
	Filename string `yaml:"filename" json:"filename" validate:"required"`

	// Directory that receives a PDF copy of each report; empty disables it
	PDFDir string `yaml:"pdf_dir" json:"pdf_dir"`
}

// PublishConfig selects and configures the report sink
type PublishConfig struct {
	Kind    string       `yaml:"kind" json:"kind" validate:"oneof=slack pubsub stdout"`
	Channel string       `yaml:"channel" json:"channel"`
	Slack   SlackConfig  `yaml:"slack" json:"slack"`
	PubSub  PubSubConfig `yaml:"pubsub" json:"pubsub"`
}

// SlackConfig holds Slack Web API settings
type SlackConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// PubSubConfig holds Google Cloud Pub/Sub settings
type PubSubConfig struct {
	ProjectID string `yaml:"project_id" json:"project_id"`
	TopicID   string `yaml:"topic_id" json:"topic_id"`
}

// ScheduleConfig holds daemon mode settings
type ScheduleConfig struct {
	// Standard five-field cron expression
	Cron string `yaml:"cron" json:"cron"`

	// Listen address of the status server; empty disables it
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Run once immediately when the daemon starts
	RunOnStart bool `yaml:"run_on_start" json:"run_on_start"`

	// PID file guarding against a second daemon on the same store; empty disables it
	PIDFile string `yaml:"pid_file" json:"pid_file"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job" json:"job" validate:"required"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// CredentialsConfig holds pre-obtained tokens. Normally populated from the
// environment rather than from the config file.
type CredentialsConfig struct {
	ShodanAPIKey  string `yaml:"shodan_api_key,omitempty"`
	SlackBotToken string `yaml:"slack_bot_token,omitempty"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Targets: TargetsConfig{
			File: "iplist.txt",
		},
		Lookup: LookupConfig{
			BaseURL:     "https://api.shodan.io",
			MinInterval: 1 * time.Second,
			Timeout:     30 * time.Second,
		},
		Store: StoreConfig{
			LatestPath: "last_result.csv",
			ArchiveDir: "logs",
		},
		Diff: DiffConfig{
			Enabled: true,
		},
		Report: ReportConfig{
			Title:    "Shodan_Notifier",
			Filename: "shodan_notifier.txt",
		},
		Publish: PublishConfig{
			Kind: PublisherSlack,
			Slack: SlackConfig{
				BaseURL: "https://slack.com/api",
				Timeout: 30 * time.Second,
			},
		},
		Schedule: ScheduleConfig{
			Cron: "0 9 * * *",
		},
		Metrics: MetricsConfig{
			Job: "shodan_notifier",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	if path == "" {
		return config, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder covers both extensions
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	return config, nil
}

// ApplyEnvironment overlays credentials and deployment specific settings
// from lookup, which is usually os.Getenv or a viper getter. Empty values
// leave the current setting untouched.
func (c *Config) ApplyEnvironment(lookup func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.ShodanAPIKey, EnvShodanAPIKey)
	set(&c.Credentials.SlackBotToken, EnvSlackToken)
	set(&c.Publish.Channel, EnvSlackChannel)
	set(&c.Publish.Kind, EnvPublishKind)
	set(&c.Publish.PubSub.ProjectID, EnvPubSubProject)
	set(&c.Publish.PubSub.TopicID, EnvPubSubTopic)
	set(&c.Metrics.PushgatewayURL, EnvPushgateway)
}

// Save saves configuration to a file. Credentials are never written.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.Credentials = CredentialsConfig{}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(yamlTagName)

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return errors.ErrConfigInvalid(trimNamespace(first.Namespace()), first.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	if c.Credentials.ShodanAPIKey == "" {
		return errors.ErrConfigMissing("credentials.shodan_api_key")
	}

	switch c.Publish.Kind {
	case PublisherSlack:
		if c.Credentials.SlackBotToken == "" {
			return errors.ErrConfigMissing("credentials.slack_bot_token")
		}
		if c.Publish.Channel == "" {
			return errors.ErrConfigMissing("publish.channel")
		}
	case PublisherPubSub:
		if c.Publish.PubSub.ProjectID == "" {
			return errors.ErrConfigMissing("publish.pubsub.project_id")
		}
		if c.Publish.PubSub.TopicID == "" {
			return errors.ErrConfigMissing("publish.pubsub.topic_id")
		}
	}

	return nil
}

// ValidateSchedule checks the settings only daemon mode needs.
func (c *Config) ValidateSchedule() error {
	if strings.TrimSpace(c.Schedule.Cron) == "" {
		return errors.ErrConfigMissing("schedule.cron")
	}
	return nil
}

func yamlTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// trimNamespace strips the root struct name from a validator namespace,
// turning "Config.lookup.base_url" into "lookup.base_url".
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
