package preset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drillforge/core/preset"
)

func TestRegistry_BuiltinPresets(t *testing.T) {
	r := preset.NewRegistry()

	std, err := r.Get(preset.Standard)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), std.PrepMs)
	assert.Equal(t, int64(2_100_000), std.CodingMs)
	assert.Equal(t, int64(300_000), std.SilentMs)
	assert.Equal(t, 3, std.NudgeBudget)

	hp, err := r.Get(preset.HighPressure)
	require.NoError(t, err)
	assert.Equal(t, 1, hp.NudgeBudget)

	na, err := r.Get(preset.NoAssistance)
	require.NoError(t, err)
	assert.Equal(t, 0, na.NudgeBudget)
}

func TestRegistry_UnknownPreset(t *testing.T) {
	r := preset.NewRegistry()
	_, err := r.Get("nonexistent")
	require.Error(t, err)
	var unknown preset.ErrUnknownPreset
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonexistent", unknown.Name)
}

func TestRegistry_LoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	content := `
presets:
  - name: standard
    prepMs: 1
    codingMs: 2
    silentMs: 3
    nudgeBudget: 9
  - name: custom
    prepMs: 10
    codingMs: 20
    silentMs: 30
    nudgeBudget: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r := preset.NewRegistry()
	require.NoError(t, r.LoadOverrides(path))

	std, err := r.Get(preset.Standard)
	require.NoError(t, err)
	assert.Equal(t, int64(1), std.PrepMs)

	custom, err := r.Get("custom")
	require.NoError(t, err)
	assert.Equal(t, 1, custom.NudgeBudget)
}
