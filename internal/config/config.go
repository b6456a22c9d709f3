package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 8300
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "cuentacuentos"
	defaultDBCharset   = "utf8mb4"
	defaultRedisURL    = "redis://localhost:6379/0"
	defaultDataDir     = "data"
	defaultStyleGuide  = "style_guide.json"
	defaultCharacters  = "characters.json"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Database       DatabaseConfig `yaml:"database"`
	RedisURL       string         `yaml:"redis_url"`
	Env            string         `yaml:"env"` // "development" | "production"
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Paths          PathsConfig    `yaml:"paths"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type PathsConfig struct {
	Data       string `yaml:"data"`
	StyleGuide string `yaml:"style_guide"`
	Characters string `yaml:"characters"`
}

func (c *AppConfig) IsDev() bool {
	return strings.ToLower(strings.TrimSpace(c.Env)) != "production"
}

// ResolveDSN builds the MySQL DSN unless one was given verbatim.
func (c *AppConfig) ResolveDSN() string {
	db := c.Database
	if dsn := strings.TrimSpace(db.DSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		db.User, db.Password, db.Host, db.Port, db.Name, db.Charset)
}

// StyleGuidePath returns the absolute-ish path of the style guide document.
func (c *AppConfig) StyleGuidePath() string {
	return c.resolveDataPath(c.Paths.StyleGuide, defaultStyleGuide)
}

// CharactersPath returns the path of the character registry document.
func (c *AppConfig) CharactersPath() string {
	return c.resolveDataPath(c.Paths.Characters, defaultCharacters)
}

func (c *AppConfig) resolveDataPath(configured, fallback string) string {
	p := strings.TrimSpace(configured)
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	dataDir := strings.TrimSpace(c.Paths.Data)
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	return filepath.Join(dataDir, p)
}

// Load reads and validates the YAML startup configuration. A missing file is
// not an error: the defaults describe a workable local setup.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && configPath == "" {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.DSN == "" {
		if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
			return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
		}
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		cfg.RedisURL = defaultRedisURL
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		RedisURL: defaultRedisURL,
		Database: DatabaseConfig{
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
		},
		Paths: PathsConfig{
			Data: defaultDataDir,
		},
	}
}
