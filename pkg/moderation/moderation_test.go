package moderation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "moderators.txt"), filepath.Join(dir, "banned.txt")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestMissingFilesCreatedEmpty(t *testing.T) {
	moderators, banned := testPaths(t)

	m, err := New(moderators, banned)
	require.NoError(t, err)
	assert.False(t, m.IsModerator(uuid.New()))
	assert.False(t, m.IsBanned(uuid.New()))

	_, err = os.Stat(moderators)
	assert.NoError(t, err)
	_, err = os.Stat(banned)
	assert.NoError(t, err)
}

func TestLoadsExistingSets(t *testing.T) {
	moderators, banned := testPaths(t)
	mod := uuid.New()
	bad := uuid.New()
	require.NoError(t, os.WriteFile(moderators, []byte(mod.String()+"\n"), 0o644))
	require.NoError(t, os.WriteFile(banned, []byte(bad.String()+"\n\n"), 0o644))

	m, err := New(moderators, banned)
	require.NoError(t, err)
	assert.True(t, m.IsModerator(mod))
	assert.True(t, m.IsBanned(bad))
	assert.False(t, m.IsModerator(bad))
}

func TestMalformedLineFails(t *testing.T) {
	moderators, banned := testPaths(t)
	require.NoError(t, os.WriteFile(moderators, []byte("not-a-uuid\n"), 0o644))

	_, err := New(moderators, banned)
	assert.Error(t, err)
}

func TestBanAppendsToFile(t *testing.T) {
	moderators, banned := testPaths(t)
	m, err := New(moderators, banned)
	require.NoError(t, err)

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, m.Ban(first))
	require.NoError(t, m.Ban(second))
	assert.True(t, m.IsBanned(first))
	assert.True(t, m.IsBanned(second))

	assert.Equal(t, []string{first.String(), second.String()}, readLines(t, banned))
}

func TestBanIsIdempotent(t *testing.T) {
	moderators, banned := testPaths(t)
	m, err := New(moderators, banned)
	require.NoError(t, err)

	target := uuid.New()
	require.NoError(t, m.Ban(target))
	require.NoError(t, m.Ban(target))

	assert.Len(t, readLines(t, banned), 1)
}

func TestModeratorsCannotBeBanned(t *testing.T) {
	moderators, banned := testPaths(t)
	mod := uuid.New()
	require.NoError(t, os.WriteFile(moderators, []byte(mod.String()+"\n"), 0o644))

	m, err := New(moderators, banned)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Ban(mod), ErrModerator)
	assert.False(t, m.IsBanned(mod))
}

func TestUnbanRewritesFile(t *testing.T) {
	moderators, banned := testPaths(t)
	m, err := New(moderators, banned)
	require.NoError(t, err)

	keep := uuid.New()
	drop := uuid.New()
	require.NoError(t, m.Ban(keep))
	require.NoError(t, m.Ban(drop))

	require.NoError(t, m.Unban(drop))
	assert.False(t, m.IsBanned(drop))
	assert.True(t, m.IsBanned(keep))
	assert.Equal(t, []string{keep.String()}, readLines(t, banned))
}

func TestUnbanUnknownUser(t *testing.T) {
	moderators, banned := testPaths(t)
	m, err := New(moderators, banned)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Unban(uuid.New()), ErrNotBanned)
}

func TestBansSurviveReload(t *testing.T) {
	moderators, banned := testPaths(t)
	m, err := New(moderators, banned)
	require.NoError(t, err)

	target := uuid.New()
	require.NoError(t, m.Ban(target))

	reloaded, err := New(moderators, banned)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBanned(target))
}
