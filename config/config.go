package config

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres | sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	SSLMode  string `yaml:"sslmode"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig web server config
type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"` // site origin used when building product links
	StaticDir string `yaml:"static_dir"` // built storefront bundle, optional
	Secret    string `yaml:"secret"`     // cookie session key
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// SFTPConfig object storage over SFTP
type SFTPConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Passwd  string `yaml:"passwd"`
	HostKey string `yaml:"host_key"` // authorized_keys line; empty disables host key checking
	Root    string `yaml:"root"`
}

// StorageConfig object storage config
type StorageConfig struct {
	Backend           string     `yaml:"backend"` // local | supabase | sftp | memory
	Bucket            string     `yaml:"bucket"`
	PublicBaseURL     string     `yaml:"public_base_url"`
	LocalDir          string     `yaml:"local_dir"`
	SupabaseURL       string     `yaml:"supabase_url"`
	ServiceKey        string     `yaml:"service_key"`
	SFTP              SFTPConfig `yaml:"sftp"`
	SweepCron         string     `yaml:"sweep_cron"`
	SweepGraceMinutes int        `yaml:"sweep_grace_minutes"`
	SweepWorkers      int        `yaml:"sweep_workers"`
}

// AuthConfig hosted auth config
type AuthConfig struct {
	JwtSecret    string   `yaml:"jwt_secret"`
	Audience     string   `yaml:"audience"`
	AdminUserIDs []string `yaml:"admin_user_ids"`
}

// WhatsappConfig contact handoff config
type WhatsappConfig struct {
	Number string `yaml:"number"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system"`
	Web      WebConfig      `yaml:"web"`
	Database DBConfig       `yaml:"database"`
	Logger   LogConfig      `yaml:"logger"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Whatsapp WhatsappConfig `yaml:"whatsapp"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetStorageDir() string {
	if c.Storage.LocalDir != "" {
		return c.Storage.LocalDir
	}
	return path.Join(c.System.Workdir, "storage")
}

func (c *AppConfig) initDirs() error {
	for _, dir := range []string{c.GetLogDir(), c.GetDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "Storefront",
		Location: "America/La_Paz",
		Workdir:  "/var/storefront",
		Debug:    true,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      8080,
		PublicURL: "http://localhost:8080",
	},
	Database: DBConfig{
		Type:     "sqlite",
		Name:     "storefront.db",
		Port:     5432,
		SSLMode:  "disable",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/storefront/logs/storefront.log",
	},
	Storage: StorageConfig{
		Backend:           "local",
		Bucket:            "products",
		PublicBaseURL:     "http://localhost:8080",
		SweepCron:         "@daily",
		SweepGraceMinutes: 60,
		SweepWorkers:      8,
	},
}

func copyDefault() *AppConfig {
	cfg := *DefaultAppConfig
	cfg.Auth.AdminUserIDs = append([]string(nil), DefaultAppConfig.Auth.AdminUserIDs...)
	return &cfg
}

// LoadConfig reads the YAML file (when given or found in the default locations),
// applies STOREFRONT_* environment overrides and prepares the work directories.
// The result is read once at process start and never reloaded.
func LoadConfig(cfile string) (*AppConfig, error) {
	if cfile == "" {
		for _, p := range []string{"storefront.yml", "/etc/storefront.yml"} {
			if _, err := os.Stat(p); err == nil {
				cfile = p
				break
			}
		}
	}

	cfg := copyDefault()
	if cfile != "" {
		data, err := os.ReadFile(filepath.Clean(cfile))
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	applyEnv(cfg)
	if err := cfg.initDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("STOREFRONT_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvValue("STOREFRONT_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("STOREFRONT_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("STOREFRONT_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("STOREFRONT_WEB_PORT", &cfg.Web.Port)
	setEnvValue("STOREFRONT_WEB_PUBLIC_URL", &cfg.Web.PublicURL)
	setEnvValue("STOREFRONT_WEB_STATIC_DIR", &cfg.Web.StaticDir)
	setEnvValue("STOREFRONT_WEB_SECRET", &cfg.Web.Secret)

	setEnvValue("STOREFRONT_DB_TYPE", &cfg.Database.Type)
	setEnvValue("STOREFRONT_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("STOREFRONT_DB_PORT", &cfg.Database.Port)
	setEnvValue("STOREFRONT_DB_NAME", &cfg.Database.Name)
	setEnvValue("STOREFRONT_DB_USER", &cfg.Database.User)
	setEnvValue("STOREFRONT_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("STOREFRONT_DB_SSLMODE", &cfg.Database.SSLMode)
	setEnvBoolValue("STOREFRONT_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("STOREFRONT_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("STOREFRONT_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setEnvValue("STOREFRONT_LOGGER_FILENAME", &cfg.Logger.Filename)

	setEnvValue("STOREFRONT_STORAGE_BACKEND", &cfg.Storage.Backend)
	setEnvValue("STOREFRONT_STORAGE_BUCKET", &cfg.Storage.Bucket)
	setEnvValue("STOREFRONT_STORAGE_PUBLIC_BASE_URL", &cfg.Storage.PublicBaseURL)
	setEnvValue("STOREFRONT_STORAGE_LOCAL_DIR", &cfg.Storage.LocalDir)
	setEnvValue("STOREFRONT_SUPABASE_URL", &cfg.Storage.SupabaseURL)
	setEnvValue("STOREFRONT_SUPABASE_SERVICE_KEY", &cfg.Storage.ServiceKey)
	setEnvValue("STOREFRONT_SFTP_HOST", &cfg.Storage.SFTP.Host)
	setEnvIntValue("STOREFRONT_SFTP_PORT", &cfg.Storage.SFTP.Port)
	setEnvValue("STOREFRONT_SFTP_USER", &cfg.Storage.SFTP.User)
	setEnvValue("STOREFRONT_SFTP_PWD", &cfg.Storage.SFTP.Passwd)

	setEnvValue("STOREFRONT_AUTH_JWT_SECRET", &cfg.Auth.JwtSecret)
	setEnvValue("STOREFRONT_AUTH_AUDIENCE", &cfg.Auth.Audience)
	setEnvSliceValue("STOREFRONT_AUTH_ADMIN_USER_IDS", &cfg.Auth.AdminUserIDs)

	setEnvValue("STOREFRONT_WHATSAPP_NUMBER", &cfg.Whatsapp.Number)
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToInt(v)
	}
}

func setEnvSliceValue(name string, val *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var items []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	*val = items
}
