package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RatesConfig carries the reporting knobs that operators tune at runtime.
type RatesConfig struct {
	// DefaultHourlyRate applies when neither the user nor the tenant has a rate.
	DefaultHourlyRate decimal.Decimal
	ReportTimeout     time.Duration
	SlowReportAfter   time.Duration
	// DailyTotalsOrder is "asc" or "desc".
	DailyTotalsOrder string
}

type ratesFile struct {
	DefaultHourlyRate string `mapstructure:"defaultHourlyRate"`
	ReportTimeout     string `mapstructure:"reportTimeout"`
	SlowReportAfter   string `mapstructure:"slowReportAfter"`
	DailyTotalsOrder  string `mapstructure:"dailyTotalsOrder"`
}

func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		DefaultHourlyRate: decimal.NewFromInt(50),
		ReportTimeout:     30 * time.Second,
		SlowReportAfter:   2 * time.Second,
		DailyTotalsOrder:  "asc",
	}
}

type RatesConfigHolder struct {
	current atomic.Value // holds RatesConfig
}

// NewStaticRatesConfigHolder returns a holder that never reloads.
func NewStaticRatesConfigHolder(cfg RatesConfig) *RatesConfigHolder {
	holder := &RatesConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRatesConfigHolder(cfg Config) (*RatesConfigHolder, error) {
	v := viper.New()

	if cfg.RatesConfigPath != "" {
		v.SetConfigFile(cfg.RatesConfigPath)
	} else {
		v.SetConfigName("rates")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/workbook")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WORKBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRatesConfig()
	v.SetDefault("rates.defaultHourlyRate", defaults.DefaultHourlyRate.String())
	v.SetDefault("rates.reportTimeout", defaults.ReportTimeout.String())
	v.SetDefault("rates.slowReportAfter", defaults.SlowReportAfter.String())
	v.SetDefault("rates.dailyTotalsOrder", defaults.DailyTotalsOrder)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	current, err := decodeRates(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRatesConfigHolder(current)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRates(v)
		if err != nil {
			log.Printf("[rates-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rates-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RatesConfigHolder) Get() RatesConfig {
	return h.current.Load().(RatesConfig)
}

func decodeRates(v *viper.Viper) (RatesConfig, error) {
	var raw ratesFile
	if err := v.UnmarshalKey("rates", &raw); err != nil {
		return RatesConfig{}, err
	}
	return parseRates(raw)
}

func parseRates(raw ratesFile) (RatesConfig, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw.DefaultHourlyRate))
	if err != nil {
		return RatesConfig{}, fmt.Errorf("rates.defaultHourlyRate: %w", err)
	}
	if rate.IsNegative() {
		return RatesConfig{}, errors.New("rates.defaultHourlyRate cannot be negative")
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(raw.ReportTimeout))
	if err != nil {
		return RatesConfig{}, fmt.Errorf("rates.reportTimeout: %w", err)
	}
	if timeout <= 0 {
		return RatesConfig{}, errors.New("rates.reportTimeout must be positive")
	}

	slow, err := time.ParseDuration(strings.TrimSpace(raw.SlowReportAfter))
	if err != nil {
		return RatesConfig{}, fmt.Errorf("rates.slowReportAfter: %w", err)
	}

	order := strings.ToLower(strings.TrimSpace(raw.DailyTotalsOrder))
	if order != "asc" && order != "desc" {
		return RatesConfig{}, fmt.Errorf("rates.dailyTotalsOrder: unsupported value %q", raw.DailyTotalsOrder)
	}

	return RatesConfig{
		DefaultHourlyRate: rate,
		ReportTimeout:     timeout,
		SlowReportAfter:   slow,
		DailyTotalsOrder:  order,
	}, nil
}
