package models

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"time"

	"content-studio/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// All lists every table owned by this service, in dependency order.
func All() []interface{} {
	return []interface{}{
		&WorkspaceMember{},
		&ContentItem{},
		&ContentFile{},
		&StatusHistory{},
		&Comment{},
		&SocialAccount{},
		&ScheduledPost{},
	}
}

func ConnectDatabase(cfg config.DatabaseConfig, env string) (*gorm.DB, error) {

	// Configure logger
	var logLevel logger.LogLevel
	if env == "prod" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	// Set the logger configuration
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  env != "prod",
		},
	)

	database, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if cfg.Migrate {
		if err := Migrate(database); err != nil {
			return nil, err
		}
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return database, nil
}

func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(All()...), "auto migrate")
}

func ConnectRedis(ctx context.Context, cfg config.RedisConfig, env string) (*redis.Client, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		Username: cfg.User,
	}

	// Apply TLS configuration if environment is "prod"
	if env == "prod" {
		options.TLSConfig = &tls.Config{
			ServerName: cfg.Host,
		}
	}

	rdb := redis.NewClient(options)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	return rdb, nil
}
