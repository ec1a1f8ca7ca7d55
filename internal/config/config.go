package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todo.db"
	DefaultLogName        = "todo.log"

	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

type Keymap struct {
	Quit         string `toml:"quit"`
	Add          string `toml:"add"`
	Up           string `toml:"up"`
	Down         string `toml:"down"`
	Toggle       string `toml:"toggle"`
	Delete       string `toml:"delete"`
	Detail       string `toml:"detail"`
	Confirm      string `toml:"confirm"`
	Cancel       string `toml:"cancel"`
	Edit         string `toml:"edit"`
	Rename       string `toml:"rename"`
	PriorityUp   string `toml:"priority_up"`
	PriorityDown string `toml:"priority_down"`
	DueForward   string `toml:"due_forward"`
	DueBack      string `toml:"due_back"`
	SortDue      string `toml:"sort_due"`
	SortPriority string `toml:"sort_priority"`
	SortCreated  string `toml:"sort_created"`
	SortOldest   string `toml:"sort_oldest"`
	Search       string `toml:"search"`
	FilterTag    string `toml:"filter_tag"`
	CyclePrio    string `toml:"cycle_priority"`
	Dismiss      string `toml:"dismiss"`
}

type Database struct {
	Driver   string `toml:"driver" env:"TODO_DB_DRIVER"`
	Path     string `toml:"path" env:"TODO_DB_PATH"`
	Host     string `toml:"host" env:"TODO_DB_HOST"`
	Port     int    `toml:"port" env:"TODO_DB_PORT"`
	User     string `toml:"user" env:"TODO_DB_USER"`
	Password string `toml:"password" env:"TODO_DB_PASSWORD"`
	Name     string `toml:"name" env:"TODO_DB_NAME"`
	SSLMode  string `toml:"sslmode" env:"TODO_DB_SSLMODE"`
}

// DSN builds the connection string for the configured driver.
func (d Database) DSN() string {
	switch d.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	default:
		return d.Path
	}
}

type HTTP struct {
	Addr                string `toml:"addr" env:"TODO_HTTP_ADDR"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds" env:"TODO_HTTP_READ_TIMEOUT"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds" env:"TODO_HTTP_WRITE_TIMEOUT"`
}

func (h HTTP) ReadTimeout() time.Duration  { return time.Duration(h.ReadTimeoutSeconds) * time.Second }
func (h HTTP) WriteTimeout() time.Duration { return time.Duration(h.WriteTimeoutSeconds) * time.Second }

// Redis enables the list cache when Addr is set.
type Redis struct {
	Addr       string `toml:"addr" env:"TODO_REDIS_ADDR"`
	Password   string `toml:"password" env:"TODO_REDIS_PASSWORD"`
	DB         int    `toml:"db" env:"TODO_REDIS_DB"`
	TTLSeconds int    `toml:"ttl_seconds" env:"TODO_REDIS_TTL"`
}

func (r Redis) Enabled() bool      { return r.Addr != "" }
func (r Redis) TTL() time.Duration { return time.Duration(r.TTLSeconds) * time.Second }

type Log struct {
	Level  string `toml:"level" env:"TODO_LOG_LEVEL"`
	Path   string `toml:"path" env:"TODO_LOG_PATH"`
	Format string `toml:"format" env:"TODO_LOG_FORMAT"`
}

type Reminders struct {
	Notifications string `toml:"notifications" env:"TODO_NOTIFICATIONS"`
	ToastSeconds  int    `toml:"toast_seconds" env:"TODO_TOAST_SECONDS"`
}

func (r Reminders) ToastDuration() time.Duration {
	if r.ToastSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.ToastSeconds) * time.Second
}

type Config struct {
	DefaultSort string    `toml:"default_sort" env:"TODO_DEFAULT_SORT"`
	Database    Database  `toml:"database"`
	HTTP        HTTP      `toml:"http"`
	Redis       Redis     `toml:"redis"`
	Log         Log       `toml:"log"`
	Reminders   Reminders `toml:"reminders"`
	Keys        Keymap    `toml:"keys"`
}

// ResolveConfigPath prefers $TODO_CONFIG, then the user config directory,
// then the working directory.
func ResolveConfigPath() string {
	if p := os.Getenv("TODO_CONFIG"); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "yarukoto", DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the TOML file at path, writing the defaults there on
// first launch, then applies .env and TODO_* environment overrides.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.fillDefaults(filepath.Dir(path))
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is empty")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database.host and database.name are required for pgx")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Reminders.Notifications {
	case PermissionDefault, PermissionGranted, PermissionDenied:
	default:
		return fmt.Errorf("reminders.notifications must be default, granted or denied, got %q", c.Reminders.Notifications)
	}
	return nil
}

func (c *Config) fillDefaults(dir string) {
	def := defaultConfig(dir)
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Database.Port == 0 {
		c.Database.Port = def.Database.Port
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = def.Database.SSLMode
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = def.Redis.TTLSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Reminders.Notifications == "" {
		c.Reminders.Notifications = PermissionDefault
	}
	if c.Reminders.ToastSeconds <= 0 {
		c.Reminders.ToastSeconds = def.Reminders.ToastSeconds
	}
	if c.DefaultSort == "" {
		c.DefaultSort = def.DefaultSort
	}
}

func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig(dir string) Config {
	return Config{
		DefaultSort: "created_desc",
		Database: Database{
			Driver:  DriverSQLite,
			Path:    filepath.Join(dir, DefaultDBName),
			Port:    5432,
			SSLMode: "disable",
		},
		HTTP: HTTP{
			Addr:                ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Redis: Redis{
			TTLSeconds: 60,
		},
		Log: Log{
			Level:  "info",
			Path:   filepath.Join(dir, DefaultLogName),
			Format: "json",
		},
		Reminders: Reminders{
			Notifications: PermissionDefault,
			ToastSeconds:  5,
		},
		Keys: Keymap{
			Quit:         "q",
			Add:          "a",
			Up:           "k",
			Down:         "j",
			Toggle:       " ",
			Delete:       "d",
			Detail:       "enter",
			Confirm:      "enter",
			Cancel:       "esc",
			Edit:         "e",
			Rename:       "r",
			PriorityUp:   "+",
			PriorityDown: "-",
			DueForward:   "]",
			DueBack:      "[",
			SortDue:      "sd",
			SortPriority: "sp",
			SortCreated:  "st",
			SortOldest:   "so",
			Search:       "/",
			FilterTag:    "t",
			CyclePrio:    "f",
			Dismiss:      "x",
		},
	}
}
