package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
}

type Config struct {
	Environment string `mapstructure:"environment"`
	Storage     string `mapstructure:"storage"`
	DatabaseURL string `mapstructure:"database_url"`
	DataDir     string `mapstructure:"data_dir"`

	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`

	// forecasting
	ForecastHorizon int           `mapstructure:"forecast_horizon"`
	MinObservations int           `mapstructure:"min_observations"`
	SeasonLength    int           `mapstructure:"season_length"` // in weeks, 0 disables the seasonal term
	FitTimeout      time.Duration `mapstructure:"fit_timeout"`
	FitWorkers      int           `mapstructure:"fit_workers"`
	FitCacheSize    int           `mapstructure:"fit_cache_size"`

	// ingredient estimation
	IngredientMatchPolicy string `mapstructure:"ingredient_match_policy"`
	IngredientWeeks       int    `mapstructure:"ingredient_weeks"`

	// snapshot sinks
	Sinks           []string           `mapstructure:"sinks"`
	OutputPath      string             `mapstructure:"output_path"`
	OutputFolder    string             `mapstructure:"output_folder"`
	KafkaBrokerList string             `mapstructure:"kafka_broker_list"`
	KafkaTopic      string             `mapstructure:"kafka_topic"`
	CloudStorage    CloudStorageConfig `mapstructure:"cloud_storage"`

	HTTPAddr    string   `mapstructure:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// seeding
	Seed         int64 `mapstructure:"seed"`
	SeedWeeks    int   `mapstructure:"seed_weeks"`
	SeedDiners   int   `mapstructure:"seed_diners"`
	SeedBaseline int   `mapstructure:"seed_baseline"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("storage", StorageFile)
	v.SetDefault("data_dir", "data")
	v.SetDefault("mongo_database", "Mess")
	v.SetDefault("mongo_collection", "orders")
	v.SetDefault("forecast_horizon", 1)
	v.SetDefault("min_observations", 3)
	v.SetDefault("season_length", 0)
	v.SetDefault("fit_timeout", 30*time.Second)
	v.SetDefault("fit_workers", 4)
	v.SetDefault("fit_cache_size", 256)
	v.SetDefault("ingredient_match_policy", MatchPolicyExact)
	v.SetDefault("ingredient_weeks", 4)
	v.SetDefault("sinks", []string{SinkJSONL})
	v.SetDefault("output_path", "output")
	v.SetDefault("output_folder", "ingredient_forecasts")
	v.SetDefault("kafka_broker_list", "localhost:9092")
	v.SetDefault("kafka_topic", "ingredient_forecasts")
	v.SetDefault("http_addr", ":5000")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("seed", 42)
	v.SetDefault("seed_weeks", 10)
	v.SetDefault("seed_diners", 40)
	v.SetDefault("seed_baseline", 30)
}

// DefaultConfig returns the configuration used when no file or environment overrides are present.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg, decodeHooks())
	return &cfg
}

// LoadConfig initializes and reads the configuration using Viper.
// A missing default config file is not an error; an explicit cfgFile must exist.
func LoadConfig(cfgFile string) (*Config, error) {
	return LoadConfigWith(viper.GetViper(), cfgFile)
}

func LoadConfigWith(v *viper.Viper, cfgFile string) (*Config, error) {
	if os.Getenv("MESS_ENVIRONMENT") != "production" {
		_ = godotenv.Load()
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		v.SetConfigName("messforecast")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHooks()); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func decodeHooks() viper.DecoderConfigOption {
	return viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
}

func (cfg *Config) Validate() error {
	var errs []error
	switch cfg.Storage {
	case StorageFile:
		if cfg.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required for file storage"))
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage %q", cfg.Storage))
	}
	if cfg.ForecastHorizon < 1 || cfg.ForecastHorizon > 52 {
		errs = append(errs, fmt.Errorf("forecast_horizon must be between 1 and 52, got %d", cfg.ForecastHorizon))
	}
	if cfg.IngredientWeeks < 1 || cfg.IngredientWeeks > 52 {
		errs = append(errs, fmt.Errorf("ingredient_weeks must be between 1 and 52, got %d", cfg.IngredientWeeks))
	}
	if cfg.MinObservations < 2 {
		errs = append(errs, fmt.Errorf("min_observations must be at least 2, got %d", cfg.MinObservations))
	}
	if cfg.SeasonLength < 0 {
		errs = append(errs, fmt.Errorf("season_length must not be negative, got %d", cfg.SeasonLength))
	}
	if cfg.FitTimeout <= 0 {
		errs = append(errs, errors.New("fit_timeout must be positive"))
	}
	switch cfg.IngredientMatchPolicy {
	case MatchPolicyExact, MatchPolicySubstring:
	default:
		errs = append(errs, fmt.Errorf("unsupported ingredient_match_policy %q", cfg.IngredientMatchPolicy))
	}
	for _, sink := range cfg.Sinks {
		switch sink {
		case SinkJSONL, SinkParquet, SinkKafka:
		case SinkPostgres:
			if cfg.DatabaseURL == "" {
				errs = append(errs, errors.New("database_url is required for the postgres sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported sink %q", sink))
		}
	}
	return errors.Join(errs...)
}
