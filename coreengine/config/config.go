// Package config provides the engine configuration.
//
// Configuration is layered: Default() values, then an optional YAML file, then
// AGORA_-prefixed environment variables, where "__" separates nesting levels
// (AGORA_MONITOR__THRESHOLD=0.2 sets monitor.threshold).
//
// Library packages receive configuration by injection; the process-wide
// Get/Set accessors are for cmd wiring only.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/msyber/agora/coreengine/risk"
)

// DefaultHelpText is the router's reply to a request no pipeline matches.
const DefaultHelpText = "Could not determine the required task. Please specify 'news' or 'filing'."

// Artifact store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the complete engine configuration.
type Config struct {
	App       AppConfig        `koanf:"app"`
	Log       LogConfig        `koanf:"log"`
	Server    ServerConfig     `koanf:"server"`
	Telemetry TelemetryConfig  `koanf:"telemetry"`
	Artifacts ArtifactsConfig  `koanf:"artifacts"`
	Router    RouterConfig     `koanf:"router"`
	Pipelines []PipelineConfig `koanf:"pipelines"`
	Risk      RiskConfig       `koanf:"risk"`
	Portfolio PortfolioConfig  `koanf:"portfolio"`
	Broker    BrokerConfig     `koanf:"broker"`
	Monitor   MonitorConfig    `koanf:"monitor"`
}

type AppConfig struct {
	Name string `koanf:"name"`
	// UserID is used when a request does not name a user.
	UserID string `koanf:"user_id"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type ServerConfig struct {
	GRPCAddr        string        `koanf:"grpc_addr"`
	HTTPAddr        string        `koanf:"http_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RunsPerMinute caps routed runs per user. 0 disables the limit.
	RunsPerMinute int `koanf:"runs_per_minute"`
}

type TelemetryConfig struct {
	ServiceName  string `koanf:"service_name"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Stdout       bool   `koanf:"stdout"`
}

type ArtifactsConfig struct {
	Backend   string `koanf:"backend"` // memory, sqlite
	SQLiteDSN string `koanf:"sqlite_dsn"`
}

type RouterConfig struct {
	HelpText string `koanf:"help_text"`
}

// RiskConfig holds the pre-trade limits and the notional each trade is sized with.
type RiskConfig struct {
	NotionalUSD        float64 `koanf:"notional_usd"`
	MaxPositionSizeUSD float64 `koanf:"max_position_size_usd"`
	MaxSectorExposure  float64 `koanf:"max_sector_exposure"`
}

// Limits converts the configured limits.
func (c RiskConfig) Limits() risk.Limits {
	return risk.Limits{MaxPositionSizeUSD: c.MaxPositionSizeUSD, MaxSectorExposure: c.MaxSectorExposure}
}

// PortfolioConfig is the read-only portfolio the risk gate checks against.
type PortfolioConfig struct {
	TotalValueUSD  float64            `koanf:"total_value_usd"`
	CashUSD        float64            `koanf:"cash_usd"`
	DefaultPrice   float64            `koanf:"default_price"`
	Prices         map[string]float64 `koanf:"prices"`
	Sectors        map[string]string  `koanf:"sectors"`
	SectorExposure map[string]float64 `koanf:"sector_exposure"`
	Positions      map[string]int     `koanf:"positions"`
}

// State converts the portfolio into a risk.PortfolioState.
func (c PortfolioConfig) State() risk.PortfolioState {
	return risk.PortfolioState{
		TotalValueUSD:  c.TotalValueUSD,
		CashUSD:        c.CashUSD,
		DefaultPrice:   c.DefaultPrice,
		Prices:         c.Prices,
		Sectors:        c.Sectors,
		SectorExposure: c.SectorExposure,
		Positions:      c.Positions,
	}
}

type BrokerConfig struct {
	Latency      time.Duration `koanf:"latency"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	// FailureThreshold consecutive failures open the order circuit.
	FailureThreshold int           `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// MonitorConfig configures the order book spread monitor and its simulated feed.
// An empty Ticker disables both.
type MonitorConfig struct {
	Name         string        `koanf:"name"`
	Ticker       string        `koanf:"ticker"`
	Threshold    float64       `koanf:"threshold"`
	TickInterval time.Duration `koanf:"tick_interval"`
	BasePrice    float64       `koanf:"base_price"`
}

// Default returns the configuration of the simulated deployment.
func Default() *Config {
	state := risk.DefaultPortfolioState()
	limits := risk.DefaultLimits()
	return &Config{
		App: AppConfig{Name: "agora", UserID: "default_user"},
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			GRPCAddr:        ":50051",
			HTTPAddr:        ":8080",
			ShutdownTimeout: 10 * time.Second,
			RunsPerMinute:   60,
		},
		Telemetry: TelemetryConfig{ServiceName: "agora"},
		Artifacts: ArtifactsConfig{Backend: BackendMemory, SQLiteDSN: "file:agora.db"},
		Router:    RouterConfig{HelpText: DefaultHelpText},
		Pipelines: DefaultPipelines(),
		Risk: RiskConfig{
			NotionalUSD:        50_000,
			MaxPositionSizeUSD: limits.MaxPositionSizeUSD,
			MaxSectorExposure:  limits.MaxSectorExposure,
		},
		Portfolio: PortfolioConfig{
			TotalValueUSD:  state.TotalValueUSD,
			CashUSD:        state.CashUSD,
			DefaultPrice:   state.DefaultPrice,
			Prices:         state.Prices,
			Sectors:        state.Sectors,
			SectorExposure: state.SectorExposure,
			Positions:      state.Positions,
		},
		Broker: BrokerConfig{
			Latency:          500 * time.Millisecond,
			QueryTimeout:     5 * time.Second,
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
		},
		Monitor: MonitorConfig{
			Name:         "spread_monitor",
			Ticker:       "MSFT",
			Threshold:    0.15,
			TickInterval: time.Second,
			BasePrice:    350,
		},
	}
}

// Validate checks pipelines and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	switch c.Artifacts.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Artifacts.SQLiteDSN == "" {
			errs = append(errs, fmt.Errorf("artifacts.sqlite_dsn is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend must be memory or sqlite, got '%s'", c.Artifacts.Backend))
	}

	if len(c.Pipelines) == 0 {
		errs = append(errs, fmt.Errorf("at least one pipeline is required"))
	}
	names := make(map[string]bool)
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate pipeline name: %s", p.Name))
		}
		names[p.Name] = true
	}

	if c.Server.RunsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.runs_per_minute must not be negative"))
	}
	if c.Risk.NotionalUSD <= 0 {
		errs = append(errs, fmt.Errorf("risk.notional_usd must be positive"))
	}
	if c.Risk.MaxPositionSizeUSD <= 0 {
		errs = append(errs, fmt.Errorf("risk.max_position_size_usd must be positive"))
	}
	if c.Risk.MaxSectorExposure <= 0 || c.Risk.MaxSectorExposure > 1 {
		errs = append(errs, fmt.Errorf("risk.max_sector_exposure must be in (0, 1]"))
	}
	if c.Portfolio.TotalValueUSD < 0 {
		errs = append(errs, fmt.Errorf("portfolio.total_value_usd must not be negative"))
	}
	if c.Broker.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broker.query_timeout must be positive"))
	}
	if c.Broker.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("broker.failure_threshold must be positive"))
	}
	if c.Monitor.Ticker != "" {
		if c.Monitor.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("monitor.threshold must be positive"))
		}
		if c.Monitor.TickInterval <= 0 {
			errs = append(errs, fmt.Errorf("monitor.tick_interval must be positive"))
		}
	}

	return errors.Join(errs...)
}

// MonitorEnabled reports whether the spread monitor should run.
func (c *Config) MonitorEnabled() bool {
	return strings.TrimSpace(c.Monitor.Ticker) != ""
}

// =============================================================================
// GLOBAL CONFIG (set by cmd bootstrap)
// =============================================================================

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the process configuration, or defaults when none was set.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()

	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}

// Set installs the process configuration.
func Set(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()

	globalConfig = cfg
}

// Reset clears the process configuration (useful for testing).
// After reset, Get returns defaults.
func Reset() {
	configMu.Lock()
	defer configMu.Unlock()

	globalConfig = nil
}
