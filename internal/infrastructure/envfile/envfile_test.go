package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestUpdateCookiePair_ReplacesInPlace(t *testing.T) {
	path := writeFile(t, `# merchant credentials
TONGLIAN_USERNAME=merchant1
TONGLIAN_COOKIE_USERID=old-user
TONGLIAN_PASSWORD=secret
TONGLIAN_COOKIE_SESSION=old-session
SYNC_INTERVAL=60
`)

	require.NoError(t, UpdateCookiePair(path, "new-user", "new-session"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `# merchant credentials
TONGLIAN_USERNAME=merchant1
TONGLIAN_COOKIE_USERID=new-user
TONGLIAN_PASSWORD=secret
TONGLIAN_COOKIE_SESSION=new-session
SYNC_INTERVAL=60
`, string(data))
}

func TestUpdateCookiePair_AppendsMissingKeys(t *testing.T) {
	path := writeFile(t, "TONGLIAN_USERNAME=merchant1\n")

	require.NoError(t, UpdateCookiePair(path, "u1", "s1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TONGLIAN_USERNAME=merchant1\nTONGLIAN_COOKIE_SESSION=s1\nTONGLIAN_COOKIE_USERID=u1\n", string(data))
}

func TestUpdateCookiePair_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.env")

	require.NoError(t, UpdateCookiePair(path, "u1", "s1"))

	userID, session, err := ReadCookiePair(path)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "s1", session)
}

func TestUpdateKeys_PreservesUnrelatedLinesVerbatim(t *testing.T) {
	original := `# comment with = sign
  indented line

WEIRD LINE WITHOUT EQUALS
TONGLIAN_COOKIE_USERID=x
`
	path := writeFile(t, original)

	require.NoError(t, UpdateKeys(path, map[string]string{KeyCookieUserID: "y"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := `# comment with = sign
  indented line

WEIRD LINE WITHOUT EQUALS
TONGLIAN_COOKIE_USERID=y
`
	assert.Equal(t, expected, string(data))
}

func TestReadKey_MissingFileOrKey(t *testing.T) {
	val, err := ReadKey(filepath.Join(t.TempDir(), "missing.env"), KeyCookieUserID)
	require.NoError(t, err)
	assert.Empty(t, val)

	path := writeFile(t, "OTHER=1\n")
	val, err = ReadKey(path, KeyCookieUserID)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestReadCookiePair(t *testing.T) {
	path := writeFile(t, "TONGLIAN_COOKIE_USERID=abc\nTONGLIAN_COOKIE_SESSION=def\n")

	userID, session, err := ReadCookiePair(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", userID)
	assert.Equal(t, "def", session)
}
