package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farmhub-actuation/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ThresholdSource 阈值配置来源（缓存未命中时回源）
type ThresholdSource interface {
	GetThresholdSpec(ctx context.Context, sensorID, sensorType string) (*models.ThresholdSpec, error)
}

// RuleSource 规则配置来源（缓存未命中时回源）
type RuleSource interface {
	GetEnabledRules(ctx context.Context, violationType string) ([]models.ActuatorRule, error)
}

// ConfigCache 阈值/规则配置缓存（Redis JSON + TTL，回源到 Postgres）
// 缓存故障只降级为直读，不阻断评估
type ConfigCache struct {
	redisClient        *redis.Client
	thresholds         ThresholdSource
	rules              RuleSource
	thresholdKeyPrefix string
	ruleKeyPrefix      string
	ttl                time.Duration
	logger             *zap.Logger
}

// NewConfigCache 创建配置缓存
func NewConfigCache(
	redisClient *redis.Client,
	thresholds ThresholdSource,
	rules RuleSource,
	thresholdKeyPrefix string,
	ruleKeyPrefix string,
	ttl time.Duration,
	logger *zap.Logger,
) *ConfigCache {
	return &ConfigCache{
		redisClient:        redisClient,
		thresholds:         thresholds,
		rules:              rules,
		thresholdKeyPrefix: thresholdKeyPrefix,
		ruleKeyPrefix:      ruleKeyPrefix,
		ttl:                ttl,
		logger:             logger,
	}
}

// GetThresholdSpec 获取阈值配置（缓存优先）
func (c *ConfigCache) GetThresholdSpec(ctx context.Context, sensorID, sensorType string) (*models.ThresholdSpec, error) {
	key := c.thresholdKeyPrefix + sensorID

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == nil {
		var spec models.ThresholdSpec
		if err := json.Unmarshal([]byte(val), &spec); err == nil {
			return &spec, nil
		}
		// 缓存内容损坏，当作未命中回源
		c.logger.Warn("Corrupt threshold cache entry, falling back to repository",
			zap.String("key", key),
		)
	} else if err != redis.Nil {
		c.logger.Warn("Threshold cache read failed, falling back to repository",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	spec, err := c.thresholds.GetThresholdSpec(ctx, sensorID, sensorType)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, spec)
	return spec, nil
}

// GetEnabledRules 获取启用规则（缓存优先，按越限类型分键）
func (c *ConfigCache) GetEnabledRules(ctx context.Context, violationType string) ([]models.ActuatorRule, error) {
	key := c.ruleKeyPrefix + violationType

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == nil {
		var rules []models.ActuatorRule
		if err := json.Unmarshal([]byte(val), &rules); err == nil {
			return rules, nil
		}
		c.logger.Warn("Corrupt rule cache entry, falling back to repository",
			zap.String("key", key),
		)
	} else if err != redis.Nil {
		c.logger.Warn("Rule cache read failed, falling back to repository",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	rules, err := c.rules.GetEnabledRules(ctx, violationType)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, rules)
	return rules, nil
}

// InvalidateRules 失效某越限类型的规则缓存（规则被管理端修改后调用）
func (c *ConfigCache) InvalidateRules(ctx context.Context, violationType string) error {
	key := c.ruleKeyPrefix + violationType
	if err := c.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rule cache: %w", err)
	}
	return nil
}

func (c *ConfigCache) store(ctx context.Context, key string, value interface{}) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache value",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		// 写缓存失败不影响主流程
		c.logger.Warn("Failed to write cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
