// Package config loads taskmirror settings.
//
// Settings come from, in increasing precedence: the global config file
// (~/.config/taskmirror/config.toml), the project file (taskmirror.toml in
// the working directory), a .env file next to it, and TM_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/amonks/taskmirror/internal/paths"
)

// ProjectFile is the name of the per-directory config file.
const ProjectFile = "taskmirror.toml"

// Backend kinds.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendHTTP   = "http"
)

// Config represents taskmirror.toml.
type Config struct {
	Backend Backend `toml:"backend"`
	Session Session `toml:"session"`
	Log     Log     `toml:"log"`
}

// Backend selects and configures the document store.
type Backend struct {
	// Kind is one of sqlite, mongo, or http. Defaults to sqlite.
	Kind string `toml:"kind" env:"TM_BACKEND"`

	SQLitePath    string `toml:"sqlite-path" env:"TM_SQLITE_PATH"`
	MongoURI      string `toml:"mongo-uri" env:"TM_MONGO_URI"`
	MongoDatabase string `toml:"mongo-database" env:"TM_MONGO_DATABASE"`

	// Addr is the backend server address, used by the http kind and by
	// tm serve.
	Addr string `toml:"addr" env:"TM_ADDR"`
}

// Session configures the client-side cache and views.
type Session struct {
	User            string        `toml:"user" env:"TM_USER"`
	CacheTTL        time.Duration `toml:"cache-ttl" env:"TM_CACHE_TTL"`
	JanitorInterval time.Duration `toml:"janitor-interval" env:"TM_JANITOR_INTERVAL"`
	Debounce        time.Duration `toml:"debounce" env:"TM_DEBOUNCE"`
	PageSize        int           `toml:"page-size" env:"TM_PAGE_SIZE"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level" env:"TM_LOG_LEVEL"`
}

// Load loads configuration for dir from the global and project config
// files, then overlays dir/.env and the environment.
func Load(dir string) (*Config, error) {
	globalPath, err := paths.GlobalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, _, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}

	merged := mergeConfigs(globalCfg, projectCfg, projectMeta)

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(merged); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	merged.applyDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Validate checks backend settings.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendSQLite, BackendHTTP:
	case BackendMongo:
		if c.Backend.MongoURI == "" {
			return fmt.Errorf("backend.mongo-uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown backend kind %q (want %s, %s, or %s)", c.Backend.Kind, BackendSQLite, BackendMongo, BackendHTTP)
	}
	if c.Session.CacheTTL < 0 || c.Session.JanitorInterval < 0 || c.Session.Debounce < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	if c.Session.PageSize < 0 {
		return fmt.Errorf("session.page-size must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendSQLite
	}
	if c.Backend.MongoDatabase == "" {
		c.Backend.MongoDatabase = "taskmirror"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &cfg, meta, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	merged := Config{}
	merged.Backend.Kind = mergeString(projectMeta.IsDefined("backend", "kind"), projectCfg.Backend.Kind, globalCfg.Backend.Kind)
	merged.Backend.SQLitePath = mergeString(projectMeta.IsDefined("backend", "sqlite-path"), projectCfg.Backend.SQLitePath, globalCfg.Backend.SQLitePath)
	merged.Backend.MongoURI = mergeString(projectMeta.IsDefined("backend", "mongo-uri"), projectCfg.Backend.MongoURI, globalCfg.Backend.MongoURI)
	merged.Backend.MongoDatabase = mergeString(projectMeta.IsDefined("backend", "mongo-database"), projectCfg.Backend.MongoDatabase, globalCfg.Backend.MongoDatabase)
	merged.Backend.Addr = mergeString(projectMeta.IsDefined("backend", "addr"), projectCfg.Backend.Addr, globalCfg.Backend.Addr)
	merged.Session.User = mergeString(projectMeta.IsDefined("session", "user"), projectCfg.Session.User, globalCfg.Session.User)
	merged.Session.CacheTTL = mergeValue(projectMeta.IsDefined("session", "cache-ttl"), projectCfg.Session.CacheTTL, globalCfg.Session.CacheTTL)
	merged.Session.JanitorInterval = mergeValue(projectMeta.IsDefined("session", "janitor-interval"), projectCfg.Session.JanitorInterval, globalCfg.Session.JanitorInterval)
	merged.Session.Debounce = mergeValue(projectMeta.IsDefined("session", "debounce"), projectCfg.Session.Debounce, globalCfg.Session.Debounce)
	merged.Session.PageSize = mergeValue(projectMeta.IsDefined("session", "page-size"), projectCfg.Session.PageSize, globalCfg.Session.PageSize)
	merged.Log.Level = mergeString(projectMeta.IsDefined("log", "level"), projectCfg.Log.Level, globalCfg.Log.Level)

	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	return strings.TrimSpace(mergeValue(projectDefined, projectValue, globalValue))
}

func mergeValue[T any](projectDefined bool, projectValue, globalValue T) T {
	if projectDefined {
		return projectValue
	}
	return globalValue
}
