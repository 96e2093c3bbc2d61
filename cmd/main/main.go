package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/version"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "caseflow",
		Short: "Caseflow - estate case management platform",
		Long: `Caseflow is a multi-tenant case-management backend for estate and
succession handling agencies. It generates per-case workflow plans, tracks
step readiness, and serves the prioritized task workspace.`,
		Version: version.GetVersionString(),
	}
)

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/caseflow/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(playbookCmd)

	playbookCmd.AddCommand(playbookLintCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "caseflow"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CASEFLOW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogging() {
	logging.Initialize(viper.GetBool("debug"))
}

// loadConfig merges environment-based defaults with any values from the
// viper config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if viper.IsSet("database_url") {
		cfg.DatabaseURL = viper.GetString("database_url")
	}
	if viper.IsSet("api_port") {
		cfg.APIPort = viper.GetInt("api_port")
	}
	if viper.IsSet("environment") {
		cfg.Environment = viper.GetString("environment")
	}
	if viper.IsSet("local_mode") {
		cfg.LocalMode = viper.GetBool("local_mode")
	}
	if viper.IsSet("due_soon_window_hours") {
		cfg.DueSoonWindowHours = viper.GetInt("due_soon_window_hours")
	}
	if viper.IsSet("overdue_sweep_cron") {
		cfg.OverdueSweepCron = viper.GetString("overdue_sweep_cron")
	}
	if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
