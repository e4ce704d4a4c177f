package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

func TestEngineHealthAdapter(t *testing.T) {
	svc, err := matching.NewService(config.NewDefaultConfig(), nil, nil)
	require.NoError(t, err)

	a := newEngineHealthAdapter(svc)
	assert.Equal(t, "engine", a.Name())
	assert.NoError(t, a.Check(context.Background()))

	svc.Close()
	err = a.Check(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheClosed))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTemperature, cfg.Engine.Temperature)

	path := filepath.Join(t.TempDir(), "knotweave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  temperature: 2.5\n"), 0o600))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Engine.Temperature)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
