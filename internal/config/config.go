package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is shared by every binary. Defaults cover the empirically tuned
// thresholds; the yaml file overrides what it sets. Durations are plain
// numbers with the unit in the field name.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Notifier NotifierConfig `yaml:"notifier"`
	Storage  StorageConfig  `yaml:"storage"`
	Lock     LockConfig     `yaml:"lock"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Risk     RiskConfig     `yaml:"risk"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (g *GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type NotifierConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (n *NotifierConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type LockConfig struct {
	Dir            string `yaml:"dir"`
	Name           string `yaml:"name"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	MaxWaitSeconds int    `yaml:"max_wait_seconds"`
}

func (l *LockConfig) PollInterval() time.Duration {
	return time.Duration(l.PollIntervalMs) * time.Millisecond
}

func (l *LockConfig) MaxWait() time.Duration {
	return time.Duration(l.MaxWaitSeconds) * time.Second
}

type ScannerConfig struct {
	Instruments   []string `yaml:"instruments"`
	MinConviction string   `yaml:"min_conviction"` // LOW/MEDIUM/HIGH gate for auto-execution

	// Payload builder tuning. The numeric values were tuned empirically, so
	// they stay configurable rather than hard-coded.
	NearEntryATRFraction   float64 `yaml:"near_entry_atr_fraction"` // degrade to market inside this fraction of ATR
	StopBufferATRFraction  float64 `yaml:"stop_buffer_atr_fraction"`
	TargetATRMultiple      float64 `yaml:"target_atr_multiple"`
	ScalpStopATRMultiple   float64 `yaml:"scalp_stop_atr_multiple"`
	ScalpTargetATRMultiple float64 `yaml:"scalp_target_atr_multiple"`
}

type MonitorConfig struct {
	BreakevenPct float64 `yaml:"breakeven_pct"` // progress to target that moves stop to entry
	TrailPct     float64 `yaml:"trail_pct"`     // progress to target that starts profit trailing
	TrailLockPct float64 `yaml:"trail_lock_pct"`
	WarnStopPct  float64 `yaml:"warn_stop_pct"` // progress toward stop that triggers a warning

	PendingTTLHours map[string]float64 `yaml:"pending_ttl_hours"` // by order source tag
	DefaultTTLHours float64            `yaml:"default_ttl_hours"`
}

// TTLFor returns the pending-order time-to-live for a source tag.
func (m *MonitorConfig) TTLFor(source string) time.Duration {
	hours, ok := m.PendingTTLHours[source]
	if !ok {
		hours = m.DefaultTTLHours
	}
	return time.Duration(hours * float64(time.Hour))
}

type RiskConfig struct {
	CooldownEnabled     bool    `yaml:"cooldown_enabled"`
	CooldownAfterLosses int     `yaml:"cooldown_after_losses"`
	CooldownHoursBase   float64 `yaml:"cooldown_hours_base"`
	MaxDailyTrades      int     `yaml:"max_daily_trades"`
	MaxDailyLossPercent float64 `yaml:"max_daily_loss_percent"`
	DailyLimitsEnabled  bool    `yaml:"daily_limits_enabled"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when a field is absent from the file.
func Default() *Config {
	return &Config{
		Gateway:  GatewayConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 15},
		Notifier: NotifierConfig{TimeoutSeconds: 10},
		Storage:  StorageConfig{DBPath: "sentinel.db"},
		Lock: LockConfig{
			Dir:            os.TempDir(),
			Name:           "trade_sentinel",
			PollIntervalMs: 1000,
			MaxWaitSeconds: 30,
		},
		Scanner: ScannerConfig{
			Instruments:            []string{"XAUUSD", "EURUSD", "USDJPY"},
			MinConviction:          "MEDIUM",
			NearEntryATRFraction:   0.5,
			StopBufferATRFraction:  0.25,
			TargetATRMultiple:      2.0,
			ScalpStopATRMultiple:   1.0,
			ScalpTargetATRMultiple: 2.0,
		},
		Monitor: MonitorConfig{
			BreakevenPct: 0.50,
			TrailPct:     0.75,
			TrailLockPct: 0.50,
			WarnStopPct:  0.70,
			PendingTTLHours: map[string]float64{
				"scalp":    1,
				"intraday": 4,
				"swing":    24,
			},
			DefaultTTLHours: 4,
		},
		Risk: RiskConfig{
			CooldownEnabled:     true,
			CooldownAfterLosses: 2,
			CooldownHoursBase:   2.0,
			MaxDailyTrades:      6,
			MaxDailyLossPercent: 3.0,
			DailyLimitsEnabled:  true,
		},
		Server:  ServerConfig{Port: 8090},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the yaml file at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
