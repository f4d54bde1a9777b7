package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	HTTPAddr        string
	HTTPAPIToken    string // Bearer token for /api; empty leaves it open

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	SMSRatePerSecond  float64
	SMSBurst          int

	CronSpecSMSSweep      string
	SweepWindow           time.Duration
	SweepDefaultThreshold int
	SweepDedup            bool
	RedisURL              string

	ReminderTickInterval     time.Duration
	ReminderSnoozeDelay      time.Duration
	ReminderMaxSnoozes       int
	ReminderMaxAnnouncements int
	ReminderPreWindow        time.Duration
	ReminderDueWindow        time.Duration
	ReminderPreWindowPreempt bool

	VAPIDPublicKey   string
	VAPIDPrivateKey  string
	VAPIDSubscriber  string
	AlarmSoundPath   string
	SuccessSoundPath string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTPAPIToken = os.Getenv("HTTP_API_TOKEN")

	// SMS stays disabled without credentials; escalations are then logged as failed.
	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioPhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
	if cfg.SMSRatePerSecond, err = getFloat("SMS_RATE_PER_SECOND", 1); err != nil {
		return nil, err
	}
	if cfg.SMSBurst, err = getInt("SMS_BURST", 5); err != nil {
		return nil, err
	}

	cfg.CronSpecSMSSweep = getEnv("CRON_SPEC_SMS_SWEEP", "*/5 * * * *") // Default: every 5 minutes
	if cfg.SweepWindow, err = getDuration("SWEEP_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepDefaultThreshold, err = getInt("SWEEP_DEFAULT_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.SweepDedup, err = getBool("SWEEP_DEDUP", false); err != nil {
		return nil, err
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.SweepDedup && cfg.RedisURL == "" {
		return nil, fmt.Errorf("SWEEP_DEDUP requires REDIS_URL")
	}

	if cfg.ReminderTickInterval, err = getDuration("REMINDER_TICK_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReminderSnoozeDelay, err = getDuration("REMINDER_SNOOZE_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReminderMaxSnoozes, err = getInt("REMINDER_MAX_SNOOZES", 0); err != nil {
		return nil, err
	}
	if cfg.ReminderMaxAnnouncements, err = getInt("REMINDER_MAX_ANNOUNCEMENTS", 3); err != nil {
		return nil, err
	}
	if cfg.ReminderPreWindow, err = getDuration("REMINDER_PRE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderDueWindow, err = getDuration("REMINDER_DUE_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderPreWindowPreempt, err = getBool("REMINDER_PRE_WINDOW_PREEMPTS", true); err != nil {
		return nil, err
	}
	if cfg.ReminderTickInterval <= 0 {
		return nil, fmt.Errorf("REMINDER_TICK_INTERVAL must be positive")
	}

	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	cfg.VAPIDSubscriber = getEnv("VAPID_SUBSCRIBER", "mailto:admin@example.com")
	cfg.AlarmSoundPath = getEnv("ALARM_SOUND_PATH", "assets/alarm.mp3")
	cfg.SuccessSoundPath = getEnv("SUCCESS_SOUND_PATH", "assets/success.mp3")

	return cfg, nil
}

// SMSEnabled reports whether Twilio credentials are configured.
func (c *AppConfig) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

// WebPushEnabled reports whether VAPID keys are configured.
func (c *AppConfig) WebPushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
