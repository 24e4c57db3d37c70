package runtime

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/australis-energy/leadgate/internal/buildinfo"
	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/logger"
)

func TestNew_DebugDoesNotMutateSettings(t *testing.T) {
	t.Parallel()

	settings, err := conf.DefaultSettings()
	require.NoError(t, err)
	settings.Debug = true
	settings.Logging.FileOutput = &logger.FileOutput{
		Enabled: true,
		Path:    filepath.Join(t.TempDir(), "leadgate.log"),
		Level:   "info",
	}

	ctx, err := New(settings, buildinfo.New("1.0.0", "", ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	assert.NotNil(t, ctx.Logger("test"))
	assert.Equal(t, "1.0.0", ctx.Build.GetVersion())
	assert.Equal(t, logger.DefaultLogLevel, settings.Logging.Console.Level)
}

func TestNew_NilSettings(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil)
	assert.Error(t, err)
}
