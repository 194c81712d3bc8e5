package keyshare

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/secret"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	recipient, err := identity.Generate()
	require.NoError(t, err)

	var entrySecret secret.Secret
	for i := range entrySecret {
		entrySecret[i] = byte(i + 1)
	}

	share, err := Wrap(entrySecret, recipient.Public())
	require.NoError(t, err)
	require.Len(t, share, Size)
	require.Equal(t, 72, Size)

	recovered, err := Unwrap(share, recipient.Secret())
	require.NoError(t, err)
	require.Equal(t, entrySecret, recovered)
}

func TestUnwrapRejectsFlippedByte(t *testing.T) {
	recipient, err := identity.Generate()
	require.NoError(t, err)

	entrySecret, err := secret.Generate()
	require.NoError(t, err)

	share, err := Wrap(entrySecret, recipient.Public())
	require.NoError(t, err)

	for i := ephemeralPublicSize; i < Size; i++ {
		tampered := share
		tampered[i] ^= 0x01
		_, err := Unwrap(tampered, recipient.Secret())
		require.Error(t, err)
	}
}

func TestWrapUnwrapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		recipient, err := identity.Generate()
		require.NoError(t, err)

		s, err := secret.Generate()
		require.NoError(t, err)

		share, err := Wrap(s, recipient.Public())
		require.NoError(t, err)

		recovered, err := Unwrap(share, recipient.Secret())
		require.NoError(t, err)
		require.Equal(t, s, recovered)
	})
}
