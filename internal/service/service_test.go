package service

import (
	"fmt"
	"testing"

	"starcards/internal/config"
	"starcards/internal/infrastructure/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 每个测试用独立的内存库，表结构与生产迁移保持一致
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				CarEvents:    "starcards.car.events",
				OrderEvents:  "starcards.order.events",
				WalletEvents: "starcards.wallet.events",
			},
		},
		Business: config.BusinessConfig{
			SettlementWindowHours: 168,
			MaxRetryCount:         5,
		},
	}
}
