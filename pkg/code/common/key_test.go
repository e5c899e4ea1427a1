package common

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Public(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromBytes, err := NewKeyFromBytes(publicKey)
	require.NoError(t, err)

	fromString, err := NewKeyFromString(base58.Encode(publicKey))
	require.NoError(t, err)

	for _, key := range []*Key{fromBytes, fromString} {
		assert.True(t, key.IsPublic())
		assert.EqualValues(t, publicKey, key.ToBytes())
		assert.Equal(t, base58.Encode(publicKey), key.ToBase58())
	}
}

func TestKey_Private(t *testing.T) {
	key, err := NewRandomKey()
	require.NoError(t, err)
	assert.False(t, key.IsPublic())
	assert.Len(t, key.ToBytes(), ed25519.PrivateKeySize)

	decoded, err := NewKeyFromString(key.ToBase58())
	require.NoError(t, err)
	assert.EqualValues(t, key.ToBytes(), decoded.ToBytes())
}

func TestKey_Invalid(t *testing.T) {
	for _, value := range []string{"invalid-key", "", base58.Encode([]byte("too-short"))} {
		_, err := NewKeyFromString(value)
		assert.Error(t, err, value)
	}

	_, err := NewKeyFromBytes(make([]byte, 33))
	assert.Error(t, err)

	var nilKey *Key
	assert.Error(t, nilKey.Validate())
}
