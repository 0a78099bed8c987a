package service

import (
	"context"
	"testing"

	"boostpanel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 未配置时返回零值，不报错
	url, err := env.settings.GetQRCodeURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url)

	limits, err := env.settings.GetServiceLimits(ctx)
	require.NoError(t, err)
	assert.Empty(t, limits)
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.settings.SetQRCodeURL(ctx, "https://cdn.example.com/qr.png"))
	url, err := env.settings.GetQRCodeURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/qr.png", url)

	want := map[string]int64{
		model.ServiceFollowers: 50,
		model.ServiceViews:     0,
	}
	require.NoError(t, env.settings.SetServiceLimits(ctx, want))
	got, err := env.settings.GetServiceLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettingsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.settings.SetQRCodeURL(ctx, ""), ErrValidation)
	assert.ErrorIs(t, env.settings.SetServiceLimits(ctx, map[string]int64{"retweets": 10}), ErrValidation)
	assert.ErrorIs(t, env.settings.SetServiceLimits(ctx, map[string]int64{model.ServiceLikes: -1}), ErrValidation)
}
