package broker

import (
	"context"
	"fmt"
	"time"

	"code_duel/internal/platform/config"
	"code_duel/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RDB backs the per-match lock and cross-instance notification fan-out.
var RDB *redis.Client

func Connect() error {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect redis %s: %w", config.AppConfig.RedisAddr, err)
	}

	RDB = client
	logger.L().Info("redis_connected", zap.String("addr", config.AppConfig.RedisAddr))
	return nil
}

func Close() {
	if RDB != nil {
		RDB.Close()
		logger.L().Info("redis_closed")
	}
}
