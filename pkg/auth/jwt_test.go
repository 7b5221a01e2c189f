package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axochat.org/axochat/pkg/config"
)

func testAuthenticator(t *testing.T, algorithm string, validTime time.Duration, key []byte) *Authenticator {
	t.Helper()
	keyPath := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyPath, key, 0o600))

	a, err := NewAuthenticator(&config.AuthConfig{
		KeyFile:   keyPath,
		Algorithm: algorithm,
		ValidTime: config.Duration(validTime),
	})
	require.NoError(t, err)
	return a
}

func TestTokenRoundTrip(t *testing.T) {
	a := testAuthenticator(t, "HS256", time.Hour, []byte("test-secret-key"))
	user := User{Name: "notch", UUID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")}

	token, err := a.NewToken(user)
	require.NoError(t, err)

	got, err := a.Auth(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestExpiredTokenRejected(t *testing.T) {
	a := testAuthenticator(t, "HS256", -time.Minute, []byte("test-secret-key"))

	token, err := a.NewToken(User{Name: "notch", UUID: uuid.New()})
	require.NoError(t, err)

	_, err = a.Auth(token)
	assert.Error(t, err)
}

func TestTokenWithoutExpiryRejected(t *testing.T) {
	key := []byte("test-secret-key")
	a := testAuthenticator(t, "HS256", time.Hour, key)

	// A signed token that simply omits exp must not validate forever.
	eternal := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		User: User{Name: "notch", UUID: uuid.New()},
	})
	token, err := eternal.SignedString(key)
	require.NoError(t, err)

	_, err = a.Auth(token)
	assert.Error(t, err)
}

func TestWrongKeyRejected(t *testing.T) {
	a := testAuthenticator(t, "HS256", time.Hour, []byte("key-one"))
	b := testAuthenticator(t, "HS256", time.Hour, []byte("key-two"))

	token, err := a.NewToken(User{Name: "notch", UUID: uuid.New()})
	require.NoError(t, err)

	_, err = b.Auth(token)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	a := testAuthenticator(t, "HS512", time.Hour, []byte("test-secret-key"))
	_, err := a.Auth("not.a.token")
	assert.Error(t, err)
}

func TestNonHMACAlgorithmRefused(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyPath, []byte("key"), 0o600))

	_, err := NewAuthenticator(&config.AuthConfig{
		KeyFile:   keyPath,
		Algorithm: "RS256",
		ValidTime: config.Duration(time.Hour),
	})
	assert.Error(t, err)

	_, err = NewAuthenticator(&config.AuthConfig{
		KeyFile:   keyPath,
		Algorithm: "bogus",
		ValidTime: config.Duration(time.Hour),
	})
	assert.Error(t, err)
}

func TestMissingKeyFile(t *testing.T) {
	_, err := NewAuthenticator(&config.AuthConfig{
		KeyFile:   filepath.Join(t.TempDir(), "nope"),
		Algorithm: "HS256",
		ValidTime: config.Duration(time.Hour),
	})
	assert.Error(t, err)
}
