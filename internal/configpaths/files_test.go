package configpaths_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/internal/configpaths"
)

func TestConfigCandidatePaths(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		wantJSON bool
		wantYAML bool
		wantTOML bool
	}{
		{name: "yaml", user: "/tmp/kb.yml", wantYAML: true},
		{name: "toml", user: "/tmp/kb.toml", wantTOML: true},
		{name: "json", user: "/tmp/kb.json", wantJSON: true},
		{name: "no extension", user: "/tmp/kb", wantJSON: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, to := configpaths.ConfigCandidatePaths(tt.user)
			assert.Equal(t, tt.wantJSON, j[0] == tt.user)
			assert.Equal(t, tt.wantYAML, y[0] == tt.user)
			assert.Equal(t, tt.wantTOML, to[0] == tt.user)
		})
	}
}

func TestDefaultNamedConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AppData", dir)

	p, err := configpaths.DefaultNamedConfigPath("run", "yml")
	require.NoError(t, err)
	assert.Equal(t, "run.yaml", filepath.Base(p))
	assert.Equal(t, "json", configpaths.Ext(""))

	require.NoError(t, configpaths.EnsureDir(p))
	assert.DirExists(t, filepath.Dir(p))
}
