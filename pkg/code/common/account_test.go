package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_SignAndVerify(t *testing.T) {
	signer, err := NewRandomAccount()
	require.NoError(t, err)

	other, err := NewRandomAccount()
	require.NoError(t, err)

	message := []byte("claim")
	signature, err := signer.Sign(message)
	require.NoError(t, err)

	assert.True(t, signer.Verify(message, signature))
	assert.False(t, signer.Verify([]byte("claim2"), signature))
	assert.False(t, other.Verify(message, signature))
	assert.False(t, signer.Verify(message, signature[:10]))

	publicOnly, err := NewAccountFromPublicKeyString(signer.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.True(t, publicOnly.Verify(message, signature))
	assert.True(t, publicOnly.Equals(signer))
	assert.False(t, publicOnly.Equals(other))

	_, err = publicOnly.Sign(message)
	assert.Error(t, err)

	_, err = publicOnly.PrivateKey()
	assert.Error(t, err)
}

func TestAccount_FromPrivateKey(t *testing.T) {
	signer, err := NewRandomAccount()
	require.NoError(t, err)

	privateKey, err := signer.PrivateKey()
	require.NoError(t, err)

	restored, err := NewAccountFromPrivateKeyString(privateKey.ToBase58())
	require.NoError(t, err)
	assert.True(t, restored.Equals(signer))

	_, err = NewAccountFromPrivateKey(signer.PublicKey())
	assert.Error(t, err)

	_, err = NewAccountFromPublicKey(privateKey)
	assert.Error(t, err)
}
