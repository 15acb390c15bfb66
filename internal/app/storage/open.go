package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/gormdb"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// Opened 已開啟的 Store 與其底層資源
type Opened struct {
	Store usecase.Store
	close func() error
}

// Close 釋放 WAL 檔案或資料庫連線
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open 依設定選擇 Store 實作
//
// 參數:
//
//	ctx: 上下文 (schema migration 使用)
//	cfg: 儲存層設定 (需已套用預設值)
//	log: Logger
//	opts: sqlstore 的 tracing / metrics 選項，memory 模式忽略
//
// 回傳:
//
//	*Opened: Store 與關閉函式
//	error: 開啟失敗
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger, opts ...sqlstore.Option) (*Opened, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Driver {
	case config.StoreMemory:
		var w *wal.WAL
		if cfg.WALPath != "" {
			var err error
			if w, err = wal.Open(cfg.WALPath); err != nil {
				return nil, err
			}
		}
		store, err := memory.NewMutexStore(w, log.Named("memory"))
		if err != nil {
			if w != nil {
				err = errors.Join(err, w.Close())
			}
			return nil, err
		}
		opened := &Opened{Store: store}
		if w != nil {
			opened.close = w.Close
		}
		return opened, nil

	case config.StoreSQLite, config.StoreMySQL:
		dbCfg := cfg.Database
		dbCfg.Driver = cfg.Driver
		client, err := gormdb.NewClient(dbCfg, log)
		if err != nil {
			return nil, err
		}
		log.Debug("connected to database", zap.String("driver", client.Driver()))

		store, err := sqlstore.NewStore(ctx, client, opts...)
		if err != nil {
			return nil, errors.Join(err, client.Close())
		}
		return &Opened{Store: store, close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
