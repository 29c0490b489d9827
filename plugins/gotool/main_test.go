package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionFile_GoDotVersion(t *testing.T) {
	spec, err := plugin.ParseVersionFile(".go-version", "1.22.3\n")
	require.NoError(t, err)
	assert.Equal(t, "1.22.3", spec)
}

func TestParseVersionFile_GoMod(t *testing.T) {
	content := "module example.com/foo\n\ngo 1.22\n\nrequire github.com/stretchr/testify v1.9.0\n"
	spec, err := plugin.ParseVersionFile("go.mod", content)
	require.NoError(t, err)
	assert.Equal(t, "1.22", spec)
}

func TestParseVersionFile_GoModMissingDirective(t *testing.T) {
	_, err := plugin.ParseVersionFile("go.mod", "module example.com/foo\n")
	assert.Error(t, err)
}

func TestParseVersionFile_Unrecognized(t *testing.T) {
	_, err := plugin.ParseVersionFile("Gemfile", "")
	assert.Error(t, err)
}

func TestParseReleaseVersions(t *testing.T) {
	body := []byte(`[{"version":"go1.22.3","stable":true},{"version":"go1.21.9","stable":true}]`)
	versions := parseReleaseVersions(body)
	assert.Equal(t, []string{"1.22.3", "1.21.9"}, versions)
}

func TestParseReleaseVersions_Empty(t *testing.T) {
	assert.Nil(t, parseReleaseVersions([]byte(`[]`)))
}

func TestRegisterTool(t *testing.T) {
	info, err := plugin.RegisterTool()
	require.NoError(t, err)
	assert.Equal(t, "go", info.Name)
	assert.Equal(t, "language-runtime", info.PluginKind)
}

func TestLocateExecutables(t *testing.T) {
	located, err := plugin.LocateExecutables()
	require.NoError(t, err)
	assert.Equal(t, "bin/go", located.Primary)
	assert.Equal(t, "bin/gofmt", located.Secondary["gofmt"])
}
