package gormdb

import (
	"fmt"
	"time"
)

// 支援的 Driver
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver string `yaml:"driver"` // sqlite (預設) 或 mysql

	// SQLite 設定
	Path string `yaml:"path"` // 資料庫檔案路徑，":memory:" 為記憶體資料庫

	// MySQL 設定
	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 3306)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"dbname"`   // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	// SQLite 固定只開一條連線
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 連線最大存活時間

	// GORM 設定
	LogLevel      string        `yaml:"log_level"`      // Log 等級: "silent", "error", "warn", "info"
	SlowThreshold time.Duration `yaml:"slow_threshold"` // 慢查詢門檻
	MaxRetries    int           `yaml:"max_retries"`    // 連線失敗重試次數 (MySQL)
	RetryInterval time.Duration `yaml:"retry_interval"` // 重試間隔
}

// DSN (Data Source Name) 產生連線字串
// MySQL 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
// SQLite 格式: path?_busy_timeout=5000&_journal_mode=WAL
func (c *Config) DSN() string {
	if c.Driver == DriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User,
			c.Password,
			c.Host,
			c.Port,
			c.DBName,
		)
	}
	if c.Path == "" || c.Path == ":memory:" {
		return ":memory:"
	}
	return c.Path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// ApplyDefaults 補全未設定的欄位
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverMySQL && c.Port == 0 {
		c.Port = 3306
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 2 * time.Second
	}
}
