package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profilesDir() string {
	return filepath.Join("..", "..", "testdata", "profiles")
}

func writeCUE(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("package test\n"+content), 0o644))
	return path
}

func TestLoadDirectory(t *testing.T) {
	result, errs := Load(profilesDir(), LoadModeCollectAll)
	require.Empty(t, errs)

	assert.Equal(t, 2, result.FileCount)
	assert.ElementsMatch(t, []string{"retribution", "mana"}, result.Names())

	ret, ok := result.Lookup("retribution")
	require.True(t, ok)
	assert.Len(t, ret.Cooldowns, 4)
	assert.Empty(t, Validate(ret))

	_, ok = result.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadSingleFile(t *testing.T) {
	result, errs := Load(filepath.Join(profilesDir(), "resources.cue"), LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, []string{"mana"}, result.Names())
}

func TestLoadNotFound(t *testing.T) {
	_, errs := Load("/nonexistent/profiles", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNotFound)
}

func TestLoadEmptyDirectory(t *testing.T) {
	_, errs := Load(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)
}

func TestLoadNotCUE(t *testing.T) {
	dir := t.TempDir()
	path := writeCUE(t, dir, "profile.json", `{}`)

	_, errs := Load(path, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)
}

func TestLoadNoProfiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "other.cue", `settings: verbose: true`)

	_, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoProfiles)
}

func TestLoadSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", "profile: a: {\n")

	_, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeLoadFailed)
}

func TestLoadCompileErrorModes(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "profiles.cue", `
profile: a: { cooldowns: [{name: "x", ability: 1}] }
profile: b: { pools: [{name: "mana", type: 0, capacity: 100, intial: 5}] }
profile: c: { buffs: [{name: "y", ability: 2}] }
`)

	result, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Empty(t, result.Profiles)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrInvalidDuration, le.Code)
	assert.True(t, le.Pos.IsValid())

	result, errs = Load(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	require.ErrorAs(t, errs[1], &le)
	assert.Equal(t, ErrCodeGeneric, le.Code)
	assert.Contains(t, le.Message, "pools[0].intial")
	assert.Equal(t, []string{"c"}, result.Names())
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"cue":                       ErrCodeBuildFailed,
		"cooldowns[0].duration":     ErrInvalidDuration,
		"buffs[2].refresh":          ErrInvalidRefresh,
		"haste.buffs[0].haste":      ErrInvalidHaste,
		"thresholds.a.b.comparison": ErrInvalidComparison,
		"resets[0].target":          ErrInvalidResetRule,
		"pools[0].capacity":         ErrInvalidCapacity,
		"something.else":            ErrCodeGeneric,
	}
	for field, code := range tests {
		assert.Equal(t, code, MapFieldToErrorCode(field), field)
	}
}
