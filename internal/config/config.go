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
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Inputs    InputsConfig    `mapstructure:"inputs"`
	Export    ExportConfig    `mapstructure:"export"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the timezone used for calendar-day bucketing.
// Unknown or empty names fall back to the process local zone.
func (c AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
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
	// Driver is "sqlite", "postgres" or "none" (archive disabled).
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Reconcile string `mapstructure:"reconcile"`
}

type ReconcileConfig struct {
	MatchWindow            time.Duration `mapstructure:"match_window"`
	TolerateMissingOutcome bool          `mapstructure:"tolerate_missing_outcome"`
}

type InputsConfig struct {
	ChatPath      string `mapstructure:"chat_path"`
	PortfolioPath string `mapstructure:"portfolio_path"`
}

type ExportConfig struct {
	Dir        string `mapstructure:"dir"`
	CSVName    string `mapstructure:"csv_name"`
	ReportName string `mapstructure:"report_name"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/tradelens.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.reconcile", "@every 15m")
	v.SetDefault("reconcile.match_window", "1h")
	v.SetDefault("reconcile.tolerate_missing_outcome", true)
	v.SetDefault("inputs.chat_path", "data/chat.json")
	v.SetDefault("inputs.portfolio_path", "data/portfolio.csv")
	v.SetDefault("export.dir", "out")
	v.SetDefault("export.csv_name", "reconciled_trades.csv")
	v.SetDefault("export.report_name", "report.html")

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
