// Package config holds the runtime settings shared by every stockledger command.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	EnvPrefix = "STOCKLEDGER"

	FlagDatabaseURL  = "database-url"
	FlagDriver       = "driver"
	FlagTransactions = "transactions"
	FlagLogLevel     = "log-level"
	FlagCompanies    = "companies"
	FlagEvery        = "every"
	FlagMetricsAddr  = "metrics-addr"

	DriverGORM = "gorm"
	DriverPGX  = "pgx"

	DefaultDatabaseURL = "sqlite:///tmp/stockledger.db"
	defaultLogLevel    = "info"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings.
type Config struct {
	DatabaseURL     string
	Driver          string
	TransactionMode inventory.TransactionMode
	LogLevel        string
	Companies       []string
	ReconcileEvery  time.Duration
	MetricsAddr     string
}

// Validate fills defaults and rejects inconsistent settings.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, DefaultDatabaseURL)
	cfg.Driver = strings.ToLower(defaultIfEmpty(cfg.Driver, DriverGORM))
	cfg.LogLevel = strings.ToLower(defaultIfEmpty(cfg.LogLevel, defaultLogLevel))
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)
	cfg.Companies = ParseList(strings.Join(cfg.Companies, ","))

	switch cfg.Driver {
	case DriverGORM:
	case DriverPGX:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("%w: driver %s requires a postgres url", ErrInvalidConfig, DriverPGX)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
	}
	mode, err := inventory.ParseTransactionMode(string(cfg.TransactionMode))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.TransactionMode = mode
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.ReconcileEvery < 0 {
		return fmt.Errorf("%w: reconcile interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Level returns the parsed log level; call after Validate.
func (cfg Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Load reads every known flag present in flags, letting STOCKLEDGER_* env
// variables fill the ones left unset, and validates the result.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{FlagDatabaseURL, FlagDriver, FlagTransactions, FlagLogLevel, FlagCompanies, FlagEvery, FlagMetricsAddr} {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(flagName, flag); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:     v.GetString(FlagDatabaseURL),
		Driver:          v.GetString(FlagDriver),
		TransactionMode: inventory.TransactionMode(v.GetString(FlagTransactions)),
		LogLevel:        v.GetString(FlagLogLevel),
		Companies:       ParseList(v.GetString(FlagCompanies)),
		ReconcileEvery:  v.GetDuration(FlagEvery),
		MetricsAddr:     v.GetString(FlagMetricsAddr),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsPostgresURL reports whether dsn names a postgres server.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// ParseList splits comma-delimited values, dropping blanks.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
