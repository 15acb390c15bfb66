package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/gormdb"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
)

// Store 種類
const (
	StoreSQLite = gormdb.DriverSQLite
	StoreMySQL  = gormdb.DriverMySQL
	StoreMemory = "memory"
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

// Config 應用程式設定
type Config struct {
	Log    logger.Config `yaml:"log"`
	Store  StoreConfig   `yaml:"store"`
	Ledger LedgerConfig  `yaml:"ledger"`
}

// StoreConfig 儲存層設定
type StoreConfig struct {
	Driver   string        `yaml:"driver"`   // sqlite (預設), mysql, memory
	WALPath  string        `yaml:"wal_path"` // memory 使用，空字串表示不落地
	Database gormdb.Config `yaml:"database"` // sqlite / mysql 使用
}

// LedgerConfig 帳務引擎設定
type LedgerConfig struct {
	MaxIDAttempts int `yaml:"max_id_attempts"` // 帳號產生嘗試上限
}

// EngineOptions 轉成 LedgerEngine 的選項
func (c LedgerConfig) EngineOptions() []usecase.EngineOption {
	return []usecase.EngineOption{usecase.WithMaxIDAttempts(c.MaxIDAttempts)}
}

// Default 回傳全部使用預設值的設定
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load 讀取 YAML 設定檔並補全預設值
// path 不存在時回傳預設設定
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults 補全未設定的欄位 (如果 yaml 沒寫)
func (c *Config) ApplyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = StoreSQLite
	}
	if c.Store.Driver != StoreMemory {
		c.Store.Database.Driver = c.Store.Driver
	}
	if c.Store.Driver == StoreSQLite && c.Store.Database.Path == "" {
		c.Store.Database.Path = "ledger.db"
	}
	c.Store.Database.ApplyDefaults()

	if c.Ledger.MaxIDAttempts <= 0 {
		c.Ledger.MaxIDAttempts = usecase.DefaultMaxAttempts
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StoreMySQL, StoreMemory:
		return nil
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
}
