package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contactvault/contactvault/internal/password"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	digest, err := password.Hash("secret1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$argon2id$"))

	ok, err := password.Verify("secret1", digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = password.Verify("secret2", digest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := password.Hash("secret1")
	require.NoError(t, err)
	second, err := password.Hash("secret1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyMalformedDigest(t *testing.T) {
	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=3,p=2$notbase64!!$alsobad",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	} {
		ok, err := password.Verify("secret1", digest)
		require.False(t, ok, "digest %q", digest)
		require.Error(t, err, "digest %q", digest)
	}
}
