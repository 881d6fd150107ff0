package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/mabar/mabar-backend/pkg/metrics"
)

func TestNewPasswordEngineUsesConfiguredProfile(t *testing.T) {
	cfg := &config.Config{
		App:      config.AppConfig{Env: config.AppEnvProd},
		Password: config.PasswordConfig{Profile: config.AppEnvDev, MaxConcurrentHashes: 2},
	}
	reg := prometheus.NewRegistry()
	engine := newPasswordEngine(cfg, metrics.NewAuthMetrics(reg))

	assert.Equal(t, config.AppEnvDev, engine.Policy().Name)

	ctx := context.Background()
	hash, err := engine.Hash(ctx, "Str0ngP@ss!")
	require.NoError(t, err)
	ok, err := engine.Verify(ctx, "Str0ngP@ss!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "password_hash_duration_seconds"))
}

func TestNewPasswordEngineToleratesZeroConcurrency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}
	engine := newPasswordEngine(cfg, nil)

	_, err := engine.Hash(context.Background(), "Str0ngP@ss!")
	require.NoError(t, err)
}
