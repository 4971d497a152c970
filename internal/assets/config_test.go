// SPDX-License-Identifier: MIT

package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderParseRoundTrip(t *testing.T) {
	cfg := DefaultConfig()

	data, err := cfg.RenderJS()
	require.NoError(t, err)
	assert.Contains(t, string(data), "module.exports = {")
	assert.Contains(t, string(data), `"jit"`)
	assert.Contains(t, string(data), "./templates/**/*.html")

	parsed, err := ParseConfigJS(data)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, parsed); diff != "" {
		t.Errorf("config round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigJSRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no export", `{"content": []}`},
		{"broken object", "module.exports = {not json};"},
		{"unterminated comment", "/* oops\nmodule.exports = {};"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigJS([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestValidateConfigJSRequiresContent(t *testing.T) {
	data := []byte(`module.exports = {"content": [], "theme": {"extend": {}}, "plugins": []};`)
	assert.Error(t, ValidateConfigJS(data))

	ok, err := DefaultConfig().RenderJS()
	require.NoError(t, err)
	assert.NoError(t, ValidateConfigJS(ok))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tailwind.config.js")

	require.NoError(t, InitConfig(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfigJS(data))

	// second init refuses without force
	err = InitConfig(path, false)
	assert.ErrorIs(t, err, ErrConfigExists)

	// corrupt file is reported, not silently replaced
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	err = InitConfig(path, false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--force"))

	// force rewrites
	require.NoError(t, InitConfig(path, true))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, ValidateConfigJS(data))
}
