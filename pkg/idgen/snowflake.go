package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法业务单号生成器
// ============================================================================
//
// 车号/订单号/流水号等业务单号要求：
//   1. 全局唯一
//   2. 趋势递增，便于数据库索引
//   3. 不暴露业务量
//
// 64 位结构：符号位(1) + 毫秒时间戳(41) + 机器ID(10) + 序列号(12)
// ============================================================================

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 初始化默认ID生成器
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID 必须在 0-%d 之间", maxWorkerID)
		}
		defaultGenerator = &Snowflake{
			workerID: workerID,
		}
	})
}

// NextID 生成下一个ID
func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		// 同一毫秒内，序列号递增
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

// 业务单号格式：前缀 + 年月日时分秒 + 雪花ID后8位
// 例如：ORD20240115143052_12345678 -> ORD2024011514305212345678

func generateNo(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%08d", prefix, timestamp, id%100000000)
}

// GenerateCarNo 生成车号
func GenerateCarNo() string {
	return generateNo("CAR")
}

// GenerateOrderNo 生成订单号
func GenerateOrderNo() string {
	return generateNo("ORD")
}

// GenerateTransactionNo 生成钱包流水号
func GenerateTransactionNo() string {
	return generateNo("TXN")
}

// GenerateWithdrawalNo 生成提现单号
func GenerateWithdrawalNo() string {
	return generateNo("WDR")
}

// GenerateCardNo 生成卡片编号
func GenerateCardNo() string {
	return generateNo("CRD")
}

// GenerateBannerNo 生成广告单号
func GenerateBannerNo() string {
	return generateNo("BNR")
}
