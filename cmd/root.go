package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sciworks/appreg/internal/config"
	"github.com/sciworks/appreg/internal/log"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "appreg",
	Short: "Build and serve a static application registry",
	Long: `appreg turns two curated documents - apps.yaml and categories.yaml -
into a static application registry. It resolves each app's release specifiers
against its git repository, scans release metadata, and emits a JSON api tree
plus a browsable website.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/appreg/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "",
		"log level: debug, info, warn, error")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("apps", defaults.Apps)
	viper.SetDefault("categories", defaults.Categories)
	viper.SetDefault("out", defaults.Out)
	viper.SetDefault("api_path", defaults.APIPath)
	viper.SetDefault("html_path", defaults.HTMLPath)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("serve.addr", defaults.Serve.Addr)
	viper.SetDefault("serve.watch", defaults.Serve.Watch)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .appreg/config.yaml (current directory)
		// 2. ~/.config/appreg/config.yaml (user config)
		if _, err := os.Stat(".appreg/config.yaml"); err == nil {
			viper.SetConfigFile(".appreg/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "appreg"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine, the defaults apply.
	_ = viper.ReadInConfig()

	_ = viper.Unmarshal(&cfg)

	log.SetMinLevel(log.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if _, err := log.InitFile(cfg.LogFile); err != nil {
			log.ErrorErr(log.CatConfig, "cannot open log file", err, "path", cfg.LogFile)
		}
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
