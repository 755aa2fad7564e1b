package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ibrahim-sec/thcsub/internal/collector"
	"github.com/ibrahim-sec/thcsub/internal/discovery"
	"github.com/ibrahim-sec/thcsub/internal/output"
	"github.com/ibrahim-sec/thcsub/internal/pacing"
	"gopkg.in/yaml.v3"
)

// Config represents the thcsub configuration
type Config struct {
	// API settings
	APIBase   string        `yaml:"api_base" validate:"required,url,endswith=/"`
	UserAgent string        `yaml:"user_agent" validate:"required"`
	PageSize  int           `yaml:"page_size" validate:"gte=1"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`

	// Retry and pacing
	RetryDelay  time.Duration `yaml:"retry_delay" validate:"gte=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0"`
	Pacing      string        `yaml:"pacing" validate:"pacing"`

	// Persistence
	Mode    string `yaml:"mode" validate:"mode"`
	NewFile string `yaml:"new_file" validate:"required"`

	// Output
	NoColor bool   `yaml:"no_color"`
	LogFile string `yaml:"log_file,omitempty"`

	// Notifications for new subdomains in diff mode
	Webhook          string `yaml:"webhook,omitempty" validate:"omitempty,url"`
	TelegramBotToken string `yaml:"telegram_bot_token,omitempty"`
	TelegramChatID   string `yaml:"telegram_chat_id,omitempty" validate:"required_with=TelegramBotToken"`
}

// Default returns the built-in settings used when no config file exists.
func Default() *Config {
	return &Config{
		APIBase:     discovery.DefaultAPIBase,
		UserAgent:   discovery.DefaultUserAgent,
		PageSize:    discovery.DefaultPageSize,
		Timeout:     discovery.DefaultTimeout,
		RetryDelay:  collector.DefaultRetryDelay,
		MaxAttempts: collector.DefaultMaxAttempts,
		Pacing:      pacing.Step,
		Mode:        output.ModeResume,
		NewFile:     output.DefaultNewFile,
	}
}

var customConfigPath string

func SetConfigPath(path string) {
	customConfigPath = path
}

func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "thcsub"), nil
}

func GetConfigPath() (string, error) {
	if customConfigPath != "" {
		return customConfigPath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func CreateConfigTemplate() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	template := `# thcsub configuration
# subdomain collector for the ip.thc.org API
# command line flags override every value below

# ========== API ==========

api_base: "https://ip.thc.org/"
user_agent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

# results per page (l= query parameter of the first request)
page_size: 100

# per-request timeout
timeout: 30s

# ========== Retries & Pacing ==========

# wait between attempts after a network or HTTP error
retry_delay: 10s

# consecutive failed attempts before a target is given up (0 = retry forever)
max_attempts: 10

# step: sleep based on the advertised rate limit
# bucket: token bucket refilled at the same rate
pacing: step

# ========== Persistence ==========

# resume: load the output file, save after every page
# diff:   compare with the output file, write new entries to new_file
mode: resume
new_file: new_subdomains.txt

# ========== Output ==========

no_color: false
# log_file: /var/log/thcsub.log

# ========== Notifications ==========
# new subdomains found in diff mode are sent to every channel set here

# Discord webhook
# webhook: "https://discord.com/api/webhooks/xxx/yyy"

# Telegram
# telegram_bot_token: "123456:ABC-DEF..."
# telegram_chat_id: "-1001234567890"
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// Load reads the config file on top of Default. A missing file is not
// an error.
func Load() (*Config, error) {
	cfg := Default()

	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	return cfg, nil
}

func Exists() bool {
	configPath, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// Validate checks cfg and returns every problem in one error.
func Validate(cfg *Config) error {
	validate := validator.New()

	_ = validate.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case output.ModeResume, output.ModeDiff:
			return true
		}
		return false
	})

	_ = validate.RegisterValidation("pacing", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case pacing.Step, pacing.Bucket:
			return true
		}
		return false
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: invalid value %q (%s)", e.Field(), fmt.Sprint(e.Value()), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
