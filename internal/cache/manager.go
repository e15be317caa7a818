package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss 表示键不存在。
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断错误是否为缓存未命中。
func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }

// Config 缓存配置。
type Config struct {
	// Addr Redis 地址
	Addr string `yaml:"addr" json:"addr"`
	// Password 密码
	Password string `yaml:"password" json:"password"`
	// DB 数据库编号
	DB int `yaml:"db" json:"db"`
	// DefaultTTL 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// PoolSize 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// DefaultConfig 返回默认缓存配置。
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		DB:         0,
		DefaultTTL: 5 * time.Minute,
		PoolSize:   10,
	}
}

// Manager 答案缓存管理器。
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
}

// NewManager 创建缓存管理器并验证连通性。
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("answer cache initialized", zap.String("addr", config.Addr))

	return &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// Get 读取缓存的答案文本。
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	val, err := m.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set 写入答案文本。ttl 为 0 使用默认过期时间。
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete 删除键。
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Close 释放底层 Redis 连接。
func (m *Manager) Close() error {
	return m.redis.Close()
}
