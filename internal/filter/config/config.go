package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// GroupFile names the YAML, JSON or TOML file listing which list files
	// make up the phrase, site and URL lists.
	GroupFile string `koanf:"group_file" validate:"required"`

	// CacheDir holds compiled list caches. Empty disables caching.
	CacheDir string `koanf:"cache_dir"`

	// QuickThreshold switches item lists with fewer entries than this to
	// quick search. Zero never switches.
	QuickThreshold int `koanf:"quick_threshold" validate:"gte=0"`

	// ForceQuick uses quick search for every item list.
	ForceQuick bool `koanf:"force_quick"`

	PreserveCase bool `koanf:"preserve_case"`

	// HexDecode decodes %xx escapes in documents before phrase scanning.
	HexDecode bool `koanf:"hex_decode"`

	// WeightMode is "singular" or "occurrence".
	WeightMode string `koanf:"weight_mode" validate:"required,weight_mode"`

	// NaughtinessLimit blocks content whose weight sum exceeds it.
	NaughtinessLimit int `koanf:"naughtiness_limit" validate:"gte=0"`

	// LookupCacheSize bounds the per-list lookup memo. Zero disables it.
	LookupCacheSize int `koanf:"lookup_cache_size" validate:"gte=0"`

	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	// Workers bounds how many lists compile in parallel.
	Workers int `koanf:"workers" validate:"gte=1,lte=64"`

	// MetricsAddr is the host:port for the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the filter service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	GroupFile:        "/etc/rr-filter/lists.yaml",
	CacheDir:         "/var/cache/rr-filter/",
	QuickThreshold:   0,
	ForceQuick:       false,
	PreserveCase:     false,
	HexDecode:        false,
	WeightMode:       "singular",
	NaughtinessLimit: 50,
	LookupCacheSize:  1000,
	BloomFPRate:      0.01,
	Workers:          4,
	MetricsAddr:      "",
}

// validWeightMode accepts the weight modes the phrase matcher understands.
func validWeightMode(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case "singular", "occurrence":
		return true
	}
	return false
}

// envLoader loads environment variables with the prefix "FILTER_".
// Values containing spaces or commas become lists. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "FILTER_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "FILTER_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "weight_mode" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("weight_mode", validWeightMode)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
