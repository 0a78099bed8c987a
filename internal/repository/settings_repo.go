package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"
)

const (
	keyQRCodeURL     = "settings:qr_code_url"
	keyServiceLimits = "settings:service_limits"
)

// SettingsRepository 两个标量配置（收款码地址、每日服务限额）
// 按原样当 JSON blob 存在 Redis 里，只有 get/set，不做任何查询语义
type SettingsRepository struct {
	rdb *redis.Client
}

func NewSettingsRepository(rdb *redis.Client) *SettingsRepository {
	return &SettingsRepository{rdb: rdb}
}

func (r *SettingsRepository) GetQRCodeURL(ctx context.Context) (string, error) {
	val, err := r.rdb.Get(ctx, keyQRCodeURL).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (r *SettingsRepository) SetQRCodeURL(ctx context.Context, url string) error {
	return r.rdb.Set(ctx, keyQRCodeURL, url, 0).Err()
}

// GetServiceLimits 每个服务的每日下单上限，0 或缺省表示不限
func (r *SettingsRepository) GetServiceLimits(ctx context.Context) (map[string]int64, error) {
	val, err := r.rdb.Get(ctx, keyServiceLimits).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]int64{}, nil
		}
		return nil, err
	}

	limits := map[string]int64{}
	if err := json.Unmarshal([]byte(val), &limits); err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *SettingsRepository) SetServiceLimits(ctx context.Context, limits map[string]int64) error {
	data, err := json.Marshal(limits)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyServiceLimits, data, 0).Err()
}
