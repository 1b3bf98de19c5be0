// Package config содержит логику чтения конфигурации сервиса приёма пожертвований.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/pledge-service/internal/model"
	"github.com/mmeshcher/pledge-service/internal/schedule"
)

// ErrFiscalYearEndMissing возвращается, если дата окончания финансового года не задана.
var ErrFiscalYearEndMissing = errors.New("fiscal year end is not configured")

// Config содержит параметры конфигурации сервиса приёма пожертвований.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	Domain          string `env:"DOMAIN"`
	FiscalConfig    string `env:"FISCAL_CONFIG"`
	FiscalYearEnd   string `env:"FISCAL_YEAR_END"`
	LedgerPath      string `env:"LEDGER_PATH"`
	StaticDir       string `env:"STATIC_DIR"`
	DatabaseURI     string `env:"DATABASE_URI"`
	TimeZone        string `env:"TIME_ZONE"`
}

const (
	defaultRunAddress   = "localhost:3000"
	defaultFiscalConfig = "config.json"
	defaultLedgerPath   = "donation.csv"
	defaultStaticDir    = "public"
	defaultTimeZone     = "Local"
)

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.StripeSecretKey, "k", "", "stripe secret key")
	flag.StringVar(&cfg.Domain, "u", "", "public base URL used in redirect links")
	flag.StringVar(&cfg.FiscalConfig, "c", defaultFiscalConfig, "path to fiscal configuration file")
	flag.StringVar(&cfg.FiscalYearEnd, "f", "", "fiscal year end date (YYYY-MM-DD), overrides the file")
	flag.StringVar(&cfg.LedgerPath, "l", defaultLedgerPath, "path to donation ledger file")
	flag.StringVar(&cfg.StaticDir, "s", defaultStaticDir, "directory with static pages")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for ledger mirror")
	flag.StringVar(&cfg.TimeZone, "z", defaultTimeZone, "time zone for calendar dates")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.StripeSecretKey, envCfg.StripeSecretKey)
	override(&cfg.Domain, envCfg.Domain)
	override(&cfg.FiscalConfig, envCfg.FiscalConfig)
	override(&cfg.FiscalYearEnd, envCfg.FiscalYearEnd)
	override(&cfg.LedgerPath, envCfg.LedgerPath)
	override(&cfg.StaticDir, envCfg.StaticDir)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.TimeZone, envCfg.TimeZone)

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

type fiscalFile struct {
	FiscalYearEnd string `json:"fiscal_year_end"`
}

// LoadFiscal возвращает конфигурацию финансового года. Дата берётся из FiscalYearEnd,
// а если она не задана, из JSON-файла FiscalConfig.
func (c *Config) LoadFiscal() (model.FiscalConfig, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return model.FiscalConfig{}, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}

	raw := c.FiscalYearEnd
	if raw == "" && c.FiscalConfig != "" {
		data, err := os.ReadFile(c.FiscalConfig)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return model.FiscalConfig{}, fmt.Errorf("read fiscal config: %w", err)
		}
		if err == nil {
			var f fiscalFile
			if err := json.Unmarshal(data, &f); err != nil {
				return model.FiscalConfig{}, fmt.Errorf("decode fiscal config: %w", err)
			}
			raw = f.FiscalYearEnd
		}
	}

	if raw == "" {
		return model.FiscalConfig{}, ErrFiscalYearEndMissing
	}

	end, err := schedule.ParseDate(raw)
	if err != nil {
		return model.FiscalConfig{}, fmt.Errorf("fiscal year end: %w", err)
	}

	return model.FiscalConfig{YearEnd: end, Location: loc}, nil
}
