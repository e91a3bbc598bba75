package config

import (
	"os"
	"path"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system settings
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig http api settings
type WebConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Secret       string `yaml:"secret"`
	AssetBaseURL string `yaml:"asset_base_url"`
}

// DBConfig database settings, type is postgres or sqlite
type DBConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logger settings
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// CartConfig cart business rules
type CartConfig struct {
	MinOrderQty int    `yaml:"min_order_qty"`
	MaxRetries  int    `yaml:"max_retries"`
	SweepSpec   string `yaml:"sweep_spec"`
}

// MailConfig outbound smtp settings. An empty host disables delivery.
type MailConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	From         string `yaml:"from"`
	AdminAddress string `yaml:"admin_address"`
	Workers      int    `yaml:"workers"`
}

type AppConfig struct {
	System   SysConfig  `yaml:"system"`
	Web      WebConfig  `yaml:"web"`
	Database DBConfig   `yaml:"database"`
	Logger   LogConfig  `yaml:"logger"`
	Cart     CartConfig `yaml:"cart"`
	Mail     MailConfig `yaml:"mail"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o700)
	_ = os.MkdirAll(c.GetDataDir(), 0o700)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "EstateHub",
		Location: "Africa/Lagos",
		Workdir:  "/var/estatehub",
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   1816,
		Secret: "9b6de5cc-0731-1203-xxtt-0f568ac9da37",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "estatehub",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/estatehub/logs/estatehub.log",
	},
	Cart: CartConfig{
		MinOrderQty: 200,
		MaxRetries:  3,
		SweepSpec:   "@every 15m",
	},
	Mail: MailConfig{
		Port:    587,
		From:    "noreply@estatehub.local",
		Workers: 4,
	},
}

// LoadConfig reads the yaml file when it exists, then applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := *DefaultAppConfig
	if cfile == "" {
		cfile = "estatehub.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(err)
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	cfg.initDirs()
	return &cfg
}

// applyEnv overrides settings from ESTATEHUB_* variables
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	setString := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			if n, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			if b, err := cast.ToBoolE(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	setString("ESTATEHUB_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setString("ESTATEHUB_SYSTEM_LOCATION", &cfg.System.Location)
	setBool("ESTATEHUB_SYSTEM_DEBUG", &cfg.System.Debug)

	setString("ESTATEHUB_WEB_HOST", &cfg.Web.Host)
	setInt("ESTATEHUB_WEB_PORT", &cfg.Web.Port)
	setString("ESTATEHUB_WEB_SECRET", &cfg.Web.Secret)
	setString("ESTATEHUB_WEB_ASSET_BASE_URL", &cfg.Web.AssetBaseURL)

	setString("ESTATEHUB_DB_TYPE", &cfg.Database.Type)
	setString("ESTATEHUB_DB_HOST", &cfg.Database.Host)
	setInt("ESTATEHUB_DB_PORT", &cfg.Database.Port)
	setString("ESTATEHUB_DB_NAME", &cfg.Database.Name)
	setString("ESTATEHUB_DB_USER", &cfg.Database.User)
	setString("ESTATEHUB_DB_PWD", &cfg.Database.Passwd)
	setBool("ESTATEHUB_DB_DEBUG", &cfg.Database.Debug)

	setString("ESTATEHUB_LOGGER_MODE", &cfg.Logger.Mode)
	setBool("ESTATEHUB_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setInt("ESTATEHUB_CART_MIN_ORDER_QTY", &cfg.Cart.MinOrderQty)
	setInt("ESTATEHUB_CART_MAX_RETRIES", &cfg.Cart.MaxRetries)
	setString("ESTATEHUB_CART_SWEEP_SPEC", &cfg.Cart.SweepSpec)

	setString("ESTATEHUB_MAIL_HOST", &cfg.Mail.Host)
	setInt("ESTATEHUB_MAIL_PORT", &cfg.Mail.Port)
	setString("ESTATEHUB_MAIL_USERNAME", &cfg.Mail.Username)
	setString("ESTATEHUB_MAIL_PASSWORD", &cfg.Mail.Password)
	setString("ESTATEHUB_MAIL_FROM", &cfg.Mail.From)
	setString("ESTATEHUB_MAIL_ADMIN", &cfg.Mail.AdminAddress)
}
