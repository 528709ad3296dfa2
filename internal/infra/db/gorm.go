package db

import (
	"fmt"
	"time"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DBに接続して *gorm.DB を返す
// postgres（本番）と sqlite（ローカル・テスト）に対応
func Connect(cfg config.DatabaseConfig, zl *zap.Logger, logLevel string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.NewGormLogger(zl, logger.GormLevel(logLevel)),
		//時刻はUTCで保存する（sqliteは文字列比較になるため）
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.URL
		if dsn == "" {
			dsn = "file:shop.db?_foreign_keys=on"
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), gcfg)
	case "postgres", "":
		gdb, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		//書き込みは1本に絞る
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return gdb, nil
}

// テーブル作成・更新
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(model.All()...)
}
