package service

import (
	"context"
	"fmt"

	"boostpanel/internal/model"
	"boostpanel/internal/repository"

	"github.com/go-redis/redis/v8"
)

type SettingsService struct {
	settingsRepo *repository.SettingsRepository
}

func NewSettingsService(redisClient *redis.Client) *SettingsService {
	return &SettingsService{
		settingsRepo: repository.NewSettingsRepository(redisClient),
	}
}

func (s *SettingsService) GetQRCodeURL(ctx context.Context) (string, error) {
	return s.settingsRepo.GetQRCodeURL(ctx)
}

func (s *SettingsService) SetQRCodeURL(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("%w: 收款码地址不能为空", ErrValidation)
	}
	return s.settingsRepo.SetQRCodeURL(ctx, url)
}

func (s *SettingsService) GetServiceLimits(ctx context.Context) (map[string]int64, error) {
	return s.settingsRepo.GetServiceLimits(ctx)
}

// SetServiceLimits 设置每日服务限额，0 表示不限
func (s *SettingsService) SetServiceLimits(ctx context.Context, limits map[string]int64) error {
	for service, limit := range limits {
		if !model.IsValidService(service) {
			return fmt.Errorf("%w: 未知服务类型 %s", ErrValidation, service)
		}
		if limit < 0 {
			return fmt.Errorf("%w: 限额不能为负", ErrValidation)
		}
	}
	return s.settingsRepo.SetServiceLimits(ctx, limits)
}
