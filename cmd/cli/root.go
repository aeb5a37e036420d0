// Package cli provides command-line interface commands for the Shodan notifier.
// This package implements the Cobra-based CLI structure with commands for
// one-shot runs, the scheduled daemon and offline snapshot inspection.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/shodan-notifier/internal/config"
	"github.com/anstrom/shodan-notifier/internal/logging"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

var (
	cfgFile string
	envFile string
	verbose bool

	// Loaded once per invocation by initConfig.
	appConfig    *config.Config
	appConfigErr error
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shodan-notifier",
	Short: "Shodan exposure change notifier",
	Long: `Shodan Notifier looks up a list of addresses on Shodan, keeps a snapshot of
every exposed service and reports what changed since the previous run to Slack,
Google Cloud Pub/Sub or the terminal.`,
	Version:      getVersion(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in the config file, the dotenv file and ENV variables.
func initConfig() {
	path := cfgFile
	if path == "" {
		path = defaultConfigFile
	}

	appConfig, appConfigErr = loadConfig(path, envFile)
	if appConfigErr != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	// Initialize structured logging after config is loaded
	initLogging(appConfig)
}

// loadConfig loads the YAML config at path and overlays credentials from
// the process environment and envPath. Real environment variables win over
// the dotenv file.
func loadConfig(path, envPath string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	env, err := newEnvironment(envPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvironment(env.GetString)

	return cfg, nil
}

// newEnvironment returns a viper instance that resolves keys from the process
// environment first and from the optional dotenv file second.
func newEnvironment(envPath string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()

	if envPath == "" {
		return v, nil
	}
	if _, err := os.Stat(envPath); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to stat env file: %w", err)
	}

	v.SetConfigFile(envPath)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", envPath, err)
	}

	return v, nil
}

// currentConfig returns a copy of the configuration loaded for this
// invocation so commands can apply flag overrides freely.
func currentConfig() (*config.Config, error) {
	if appConfigErr != nil {
		return nil, appConfigErr
	}
	if appConfig == nil {
		return config.Default(), nil
	}
	cfg := *appConfig
	return &cfg, nil
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging(cfg *config.Config) {
	logConfig := logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == "debug",
	}
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized", "level", logConfig.Level, "format", cfg.Logging.Format)
	}
}
