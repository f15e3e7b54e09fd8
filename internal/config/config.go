// Application configuration, loaded once by the root command and shared read-only.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Sender      SenderConfig      `mapstructure:"sender"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Locator     LocatorConfig     `mapstructure:"locator"`
	Like        LikeConfig        `mapstructure:"like"`
	Activity    ActivityConfig    `mapstructure:"activity"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// PostgresConfig holds settings for the optional outcome history database.
// An empty URL disables the history journal.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ExecPath        string        `mapstructure:"exec_path"`
	UserDataDir     string        `mapstructure:"user_data_dir"`
	RemoteURL       string        `mapstructure:"remote_url"`
	StartURL        string        `mapstructure:"start_url"`
	TargetHost      string        `mapstructure:"target_host"`
	Args            []string      `mapstructure:"args"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout"`
}

// SenderConfig describes what to send and how often. Intervals are seconds.
type SenderConfig struct {
	MinInterval     float64  `mapstructure:"min_interval"`
	MaxInterval     float64  `mapstructure:"max_interval"`
	Messages        []string `mapstructure:"messages"`
	MessagesText    string   `mapstructure:"messages_text"`
	MessagesFile    string   `mapstructure:"messages_file"`
	Randomize       bool     `mapstructure:"randomize"`
	Preset          string   `mapstructure:"preset"`
	PresetsFile     string   `mapstructure:"presets_file"`
	ConfirmLongLine int      `mapstructure:"confirm_long_line"`
}

// DeliveryConfig holds the fixed waits of a single delivery attempt.
type DeliveryConfig struct {
	ClearDelay    time.Duration `mapstructure:"clear_delay"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	RecheckDelay  time.Duration `mapstructure:"recheck_delay"`
	VerifyDelay   time.Duration `mapstructure:"verify_delay"`
	FallbackDelay time.Duration `mapstructure:"fallback_delay"`
}

// SchedulerConfig holds the countdown refresh cadence.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LocatorConfig lists the page selectors tried, in priority order.
type LocatorConfig struct {
	InputSelectors  []string `mapstructure:"input_selectors"`
	ButtonSelectors []string `mapstructure:"button_selectors"`
	ButtonTexts     []string `mapstructure:"button_texts"`
}

// LikeConfig describes the repeated like gesture.
type LikeConfig struct {
	Key             string        `mapstructure:"key"`
	Code            string        `mapstructure:"code"`
	KeyCode         int           `mapstructure:"key_code"`
	TargetSelectors []string      `mapstructure:"target_selectors"`
	MinDelay        time.Duration `mapstructure:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	Native          bool          `mapstructure:"native"`
}

// ActivityConfig bounds the in-memory activity log.
type ActivityConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// DiagnosticsConfig controls page inspection after the chat input goes missing.
type DiagnosticsConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	LoginMarkers []string `mapstructure:"login_markers"`
}

// Default selector sets, ordered by preference.
var (
	DefaultInputSelectors = []string{
		`textarea.webcast-room__chat_input_editor`,
		`textarea[placeholder*="说点什么"]`,
		`textarea.xgplayer-input-textarea`,
		`.chat-input-container textarea`,
		`div[contenteditable="true"]`,
		`textarea`,
	}
	DefaultButtonSelectors = []string{
		`.webcast-room__chat_send_btn`,
		`button[class*="send_btn"]`,
		`button[class*="send-btn"]`,
	}
	DefaultButtonTexts     = []string{"发送", "Send"}
	DefaultLikeTargets     = []string{".xgplayer-container", "video", "body"}
	DefaultMessages        = []string{"来了", "喜欢主播"}
	DefaultLoginMarkers    = []string{"登录", "Login"}
	DefaultChromeArguments = []string{"--no-sandbox", "--disable-dev-shm-usage"}
)

// SetDefaults registers the default values with viper so the tool runs with no config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "autosend")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", "chrome_user_data")
	v.SetDefault("browser.start_url", "https://live.douyin.com")
	v.SetDefault("browser.target_host", "douyin.com")
	v.SetDefault("browser.args", DefaultChromeArguments)
	v.SetDefault("browser.launch_timeout", 30*time.Second)

	v.SetDefault("sender.min_interval", 10.0)
	v.SetDefault("sender.max_interval", 15.0)
	v.SetDefault("sender.messages", DefaultMessages)
	v.SetDefault("sender.randomize", true)
	v.SetDefault("sender.presets_file", "comments.json")
	v.SetDefault("sender.confirm_long_line", 50)

	v.SetDefault("delivery.clear_delay", 100*time.Millisecond)
	v.SetDefault("delivery.settle_delay", 500*time.Millisecond)
	v.SetDefault("delivery.recheck_delay", 200*time.Millisecond)
	v.SetDefault("delivery.verify_delay", 800*time.Millisecond)
	v.SetDefault("delivery.fallback_delay", 800*time.Millisecond)

	v.SetDefault("scheduler.tick_interval", 100*time.Millisecond)

	v.SetDefault("locator.input_selectors", DefaultInputSelectors)
	v.SetDefault("locator.button_selectors", DefaultButtonSelectors)
	v.SetDefault("locator.button_texts", DefaultButtonTexts)

	v.SetDefault("like.key", "z")
	v.SetDefault("like.code", "KeyZ")
	v.SetDefault("like.key_code", 90)
	v.SetDefault("like.target_selectors", DefaultLikeTargets)
	v.SetDefault("like.min_delay", 100*time.Millisecond)
	v.SetDefault("like.max_delay", 200*time.Millisecond)

	v.SetDefault("activity.max_entries", 200)

	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.login_markers", DefaultLoginMarkers)
}

// Validate checks the loaded configuration for values the tool cannot run with.
// Min/max interval ordering is deliberately not enforced: the scheduler clamps it.
func (c *Config) Validate() error {
	var errs []error
	if c.Sender.MinInterval <= 0 {
		errs = append(errs, fmt.Errorf("sender.min_interval must be positive, got %v", c.Sender.MinInterval))
	}
	if c.Sender.MaxInterval <= 0 {
		errs = append(errs, fmt.Errorf("sender.max_interval must be positive, got %v", c.Sender.MaxInterval))
	}
	if len(c.Locator.InputSelectors) == 0 {
		errs = append(errs, errors.New("locator.input_selectors must not be empty"))
	}
	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, errors.New("scheduler.tick_interval must be positive"))
	}
	if c.Like.MinDelay <= 0 || c.Like.MaxDelay < c.Like.MinDelay {
		errs = append(errs, fmt.Errorf("like delays must satisfy 0 < min_delay <= max_delay, got %s..%s", c.Like.MinDelay, c.Like.MaxDelay))
	}
	if c.Like.Key == "" {
		errs = append(errs, errors.New("like.key must not be empty"))
	}
	if c.Activity.MaxEntries <= 0 {
		errs = append(errs, errors.New("activity.max_entries must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"clear_delay":    c.Delivery.ClearDelay,
		"settle_delay":   c.Delivery.SettleDelay,
		"recheck_delay":  c.Delivery.RecheckDelay,
		"verify_delay":   c.Delivery.VerifyDelay,
		"fallback_delay": c.Delivery.FallbackDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("delivery.%s must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		Set(&cfg)
	})
	return loadErr
}

// Set replaces the global configuration. Used by the root command after validation.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
