package gormdb

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db     *gorm.DB
	driver string
}

// NewClient 建立並回傳一個新的資料庫客戶端實例 (GORM)
//
// 參數:
//
//	cfg: Config - 連線配置 (未設定的欄位會套用預設值)
//	log: *zap.Logger - GORM 與重試訊息輸出，nil 時不輸出
//
// 回傳值:
//
//	*Client: 封裝後的客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	var dialector gorm.Dialector
	maxRetries := cfg.MaxRetries
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
		// 本機檔案不需要重試
		maxRetries = 1
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		// 預設跳過事務模式，需要原子性的地方明確使用 db.Transaction
		SkipDefaultTransaction: true,
		// 讓 duplicate key 等錯誤轉成 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         NewLogger(log, cfg.LogLevel, cfg.SlowThreshold),
	}

	var db *gorm.DB
	var err error

	// Retry mechanism for database connection
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			// Try pinging to ensure connection is actually alive
			rawDB, dbErr := db.DB()
			if dbErr == nil {
				if err = rawDB.Ping(); err == nil {
					break // Connection successful
				}
			} else {
				err = dbErr
			}
		}

		if i < maxRetries-1 {
			log.Warn("database connect failed, retrying",
				zap.String("driver", cfg.Driver),
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", maxRetries),
				zap.Duration("retry_in", cfg.RetryInterval),
				zap.Error(err),
			)
			time.Sleep(cfg.RetryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite 同時只允許一個寫入者；單一連線讓交易自然排隊，
		// 且 :memory: 資料庫只存在於該連線上，不能讓它過期
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 測試連線
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("%s ping failed: %w", cfg.Driver, err)
	}

	return &Client{db: db, driver: cfg.Driver}, nil
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Driver 回傳使用中的 driver 名稱
func (c *Client) Driver() string {
	return c.driver
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
