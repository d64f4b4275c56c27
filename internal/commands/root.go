// internal/commands/root.go
package atelier

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// credentialEnv maps config keys to the provider variables users already export.
var credentialEnv = map[string]string{
	"credentials.anthropic": "ANTHROPIC_API_KEY",
	"credentials.openai":    "OPENAI_API_KEY",
	"credentials.gemini":    "GEMINI_API_KEY",
	"credentials.unsplash":  "UNSPLASH_ACCESS_KEY",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "atelier",
	Short:         "atelier turns a design prompt into polished HTML/CSS frames",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		cfg, err := unmarshalConfig()
		if err != nil {
			return err
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		currentConfig = cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (JSON or YAML)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("model", "", "text model id (claude-*, gpt-*, gemini-*, or a local Ollama model)")
	rootCmd.PersistentFlags().Int("maxTokens", 0, "completion token limit for layout and review calls")
	rootCmd.PersistentFlags().Int("timeout", 0, "per-request timeout in seconds")
	rootCmd.PersistentFlags().Bool("metrics", false, "record per-provider call metrics")

	for _, name := range []string{"debug", "logFile", "model", "maxTokens", "timeout", "metrics"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	viper.SetEnvPrefix("ATELIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range credentialEnv {
		_ = viper.BindEnv(key, "ATELIER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}

// initConfig loads a .env file when present and points viper at the config file.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not read .env: %v\n", err)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file. A missing file is not an error.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// unmarshalConfig decodes viper's merged settings using the config's JSON field names.
func unmarshalConfig() (*appconfig.Config, error) {
	var cfg appconfig.Config
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{}
	}
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
