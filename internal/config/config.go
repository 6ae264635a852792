package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Dart      DartConfig      `mapstructure:"dart"`
	Krx       KrxConfig       `mapstructure:"krx"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// CronConfig holds the trigger spec of every scheduled job. Specs use the
// robfig/cron six-field syntax (with seconds) or the @every shorthand.
type CronConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	RefreshSymbolMaster string `mapstructure:"refresh_symbol_master"`
	RefreshDailyPrices  string `mapstructure:"refresh_daily_prices"`
	PollDisclosures     string `mapstructure:"poll_disclosures"`
	EvaluatePriceAlerts string `mapstructure:"evaluate_price_alerts"`
}

type DartConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PageLimit  int           `mapstructure:"page_limit"`
	MaxPages   int           `mapstructure:"max_pages"`
	WindowDays int           `mapstructure:"window_days"`
}

type KrxConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

type NotifyConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	UseTLS      bool   `mapstructure:"use_tls"`
	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`
}

type SchedulerConfig struct {
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// Flat env names kept for deployment compatibility. An unset value
	// disables the corresponding channel rather than failing startup.
	_ = v.BindEnv("notify.redis.host", "SW_NOTIFY_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("notify.telegram.bot_token", "SW_NOTIFY_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram.admin_chat_id", "SW_NOTIFY_TELEGRAM_ADMIN_CHAT_ID", "TELEGRAM_ADMIN_ID")
	_ = v.BindEnv("notify.smtp.host", "SW_NOTIFY_SMTP_HOST", "SMTP_HOST")
	_ = v.BindEnv("notify.smtp.port", "SW_NOTIFY_SMTP_PORT", "SMTP_PORT")
	_ = v.BindEnv("notify.smtp.username", "SW_NOTIFY_SMTP_USERNAME", "SMTP_USERNAME")
	_ = v.BindEnv("notify.smtp.password", "SW_NOTIFY_SMTP_PASSWORD", "SMTP_PASSWORD")
	_ = v.BindEnv("notify.smtp.use_tls", "SW_NOTIFY_SMTP_USE_TLS", "SMTP_USE_TLS")
	_ = v.BindEnv("notify.smtp.sender_email", "SW_NOTIFY_SMTP_SENDER_EMAIL", "SENDER_EMAIL")
	_ = v.BindEnv("notify.smtp.sender_name", "SW_NOTIFY_SMTP_SENDER_NAME", "SENDER_NAME")
	_ = v.BindEnv("dart.api_key", "SW_DART_API_KEY", "DART_API_KEY")

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "Asia/Seoul")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.refresh_symbol_master", "0 0 7 * * *")
	v.SetDefault("cron.refresh_daily_prices", "0 0 18 * * *")
	v.SetDefault("cron.poll_disclosures", "@every 240m")
	v.SetDefault("cron.evaluate_price_alerts", "@every 1m")
	v.SetDefault("dart.base_url", "https://opendart.fss.or.kr")
	v.SetDefault("dart.timeout", "10s")
	v.SetDefault("dart.page_limit", 100)
	v.SetDefault("dart.max_pages", 0)
	v.SetDefault("dart.window_days", 7)
	v.SetDefault("krx.base_url", "https://kind.krx.co.kr")
	v.SetDefault("krx.timeout", "10s")
	v.SetDefault("krx.download_timeout", "60s")
	v.SetDefault("notify.redis.port", 6379)
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.use_tls", false)
	v.SetDefault("notify.smtp.sender_name", "StockWatch")
	v.SetDefault("scheduler.shutdown_grace", "30s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
