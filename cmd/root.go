package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/models"
	"github.com/chrisdamba/messforecast/internal/pipeline"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "messforecast",
	Short: "Forecasts mess hall attendance and the ingredients it needs",
	Long: `messforecast fits a seasonal model to weekly mess hall attendance, turns the predicted
headcount into dish demand through the weekly menu, and estimates the ingredient quantities
required to serve it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./messforecast.yaml)")

	rootCmd.PersistentFlags().String("storage", models.StorageFile, "Repository backend: file or postgres")
	rootCmd.PersistentFlags().String("data-dir", "data", "Directory of the file repositories")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().String("mongo-uri", "", "MongoDB URI for raw order documents")
	rootCmd.PersistentFlags().StringSlice("sinks", []string{models.SinkJSONL}, "Snapshot sinks: jsonl, parquet, kafka, postgres")
	rootCmd.PersistentFlags().String("output-path", "output", "Directory for file sinks")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or console")

	for _, name := range []string{"storage", "data-dir", "database-url", "mongo-uri", "sinks", "output-path", "log-level", "log-format"} {
		cobra.CheckErr(viper.BindPFlag(flagKey(name), rootCmd.PersistentFlags().Lookup(name)))
	}
}

// flagKey maps a dashed flag name to its config key.
func flagKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig() (*models.Config, error) {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if used := viper.ConfigFileUsed(); used != "" {
		logging.Debug().Str("file", used).Msg("using config file")
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
