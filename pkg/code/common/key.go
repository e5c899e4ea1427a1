package common

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Key is an ed25519 key. Public keys are 32 bytes and private keys are 64
// bytes, with the public key as the trailing half.
type Key struct {
	raw     []byte
	encoded string
}

func newKey(raw []byte, encoded string) (*Key, error) {
	k := &Key{raw: raw, encoded: encoded}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

func NewKeyFromBytes(value []byte) (*Key, error) {
	return newKey(value, base58.Encode(value))
}

func NewKeyFromString(value string) (*Key, error) {
	raw, err := base58.Decode(value)
	if err != nil {
		return nil, errors.Wrap(err, "key isn't valid base58")
	}
	return newKey(raw, value)
}

// NewRandomKey generates a private key
func NewRandomKey() (*Key, error) {
	_, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "error generating ed25519 key")
	}
	return NewKeyFromBytes(privateKey)
}

func (k *Key) ToBytes() []byte {
	return k.raw
}

func (k *Key) ToBase58() string {
	return k.encoded
}

func (k *Key) IsPublic() bool {
	return len(k.raw) == ed25519.PublicKeySize
}

func (k *Key) Validate() error {
	if k == nil {
		return errors.New("key is nil")
	}

	switch len(k.raw) {
	case ed25519.PublicKeySize, ed25519.PrivateKeySize:
	default:
		return errors.Errorf("key is %d bytes, expected %d or %d", len(k.raw), ed25519.PublicKeySize, ed25519.PrivateKeySize)
	}

	// Catches encodings with leading zero ambiguity
	if base58.Encode(k.raw) != k.encoded {
		return errors.New("key bytes don't match the encoded value")
	}
	return nil
}
