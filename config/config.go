package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/search"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL         string `env:"DATABASE_URL,required" validate:"required"`
	WorkerCount         int    `env:"WORKER_COUNT" envDefault:"3" validate:"min=1,max=100"`
	PollIntervalSec     int    `env:"POLL_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`
	DispatchIntervalSec int    `env:"DISPATCH_INTERVAL_SEC" envDefault:"15" validate:"min=1,max=300"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret    string `env:"JWT_SECRET,required" validate:"required,min=32"`
	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	ReviewEmail  string `env:"REVIEW_EMAIL"   validate:"omitempty,email"`

	SerpBaseURL    string `env:"SERP_BASE_URL" envDefault:"https://serpapi.com" validate:"required,url"`
	SerpAPIKey     string `env:"SERP_API_KEY,required" validate:"required"`
	SerpTimeoutSec int    `env:"SERP_TIMEOUT_SEC" envDefault:"20" validate:"min=1,max=120"`
	SerpLocale     string `env:"SERP_LOCALE" envDefault:"br"`

	BrowserEnabled    bool   `env:"BROWSER_ENABLED" envDefault:"true"`
	BrowserTimeoutSec int    `env:"BROWSER_TIMEOUT_SEC" envDefault:"45" validate:"min=5,max=300"`
	EvidenceDir       string `env:"EVIDENCE_DIR" envDefault:"/var/lib/precario/evidence"`

	// Search tuning. Variation knobs are percentages to keep env values
	// readable; SearchConfig converts them to ratios.
	TargetCount           int     `env:"TARGET_COUNT" envDefault:"3" validate:"min=1,max=20"`
	VariationCeilingPct   float64 `env:"VARIATION_CEILING_PCT" envDefault:"25" validate:"gt=0,lte=100"`
	VariationIncrementPct float64 `env:"VARIATION_INCREMENT_PCT" envDefault:"20" validate:"gt=0"`
	VariationMaxPct       float64 `env:"VARIATION_MAX_PCT" envDefault:"50" validate:"gt=0,lte=100"`
	MaxEscalations        int     `env:"MAX_ESCALATIONS" envDefault:"5" validate:"min=0,max=20"`
	MaxCandidates         int     `env:"MAX_CANDIDATES" envDefault:"30" validate:"min=1,max=200"`

	PriceMismatchEnabled bool    `env:"PRICE_MISMATCH_ENABLED" envDefault:"true"`
	PriceMismatchPct     float64 `env:"PRICE_MISMATCH_PCT" envDefault:"5" validate:"gt=0,lte=100"`
	PriceFloor           float64 `env:"PRICE_FLOOR" envDefault:"1" validate:"gte=0"`
	PriceCeiling         float64 `env:"PRICE_CEILING" envDefault:"100000000" validate:"gt=0"`

	BlockedDomains        []string `env:"BLOCKED_DOMAINS" envSeparator:"," envDefault:"olx.com.br,enjoei.com.br,mercadolivre.com.br/social,leilao,shpp.com.br,aliexpress.com,desapega"`
	ComparatorDomains     []string `env:"COMPARATOR_DOMAINS" envSeparator:"," envDefault:"zoom.com.br,buscape.com.br,bondfaro.com.br,shopping.google.com"`
	AllowedForeignDomains []string `env:"ALLOWED_FOREIGN_DOMAINS" envSeparator:"," envDefault:"apple.com,dell.com,hp.com,lenovo.com,samsung.com"`
	ListingPathPatterns   []string `env:"LISTING_PATH_PATTERNS" envSeparator:"," envDefault:"/busca,/search,/categoria,/c/,?q=,?busca="`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) SearchConfig() search.Config {
	pct := decimal.NewFromInt(100)
	return search.Config{
		TargetCount:            c.TargetCount,
		VariationCeiling:       decimal.NewFromFloat(c.VariationCeilingPct).Div(pct),
		VariationIncrement:     decimal.NewFromFloat(c.VariationIncrementPct).Div(pct),
		VariationMax:           decimal.NewFromFloat(c.VariationMaxPct).Div(pct),
		MaxEscalations:         c.MaxEscalations,
		MaxCandidates:          c.MaxCandidates,
		PriceMismatchEnabled:   c.PriceMismatchEnabled,
		PriceMismatchTolerance: decimal.NewFromFloat(c.PriceMismatchPct).Div(pct),
		PriceFloor:             decimal.NewFromFloat(c.PriceFloor),
		PriceCeiling:           decimal.NewFromFloat(c.PriceCeiling),
	}
}

func (c *Config) ClassifierConfig() classify.Config {
	return classify.Config{
		BlockedDomains:        c.BlockedDomains,
		ComparatorDomains:     c.ComparatorDomains,
		AllowedForeignDomains: c.AllowedForeignDomains,
		ListingPathPatterns:   c.ListingPathPatterns,
	}
}
