package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/code-payments/code-distributor/pkg/testutil"
)

type testMessage struct {
	value string
	err   error
}

func (m *testMessage) SigningBytes() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.value), nil
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	verifier := NewSignatureVerifier()

	ownerAccount := testutil.NewRandomAccount(t)
	maliciousAccount := testutil.NewRandomAccount(t)

	msg := &testMessage{value: "claim:distribution:100"}

	signature, err := ownerAccount.Sign([]byte(msg.value))
	require.NoError(t, err)

	require.NoError(t, verifier.Authenticate(ctx, ownerAccount, msg, signature))

	err = verifier.Authenticate(ctx, ownerAccount, msg, nil)
	testutil.AssertStatusErrorWithCode(t, err, codes.Unauthenticated)

	err = verifier.Authenticate(ctx, ownerAccount, &testMessage{value: "claim:distribution:1000"}, signature)
	testutil.AssertStatusErrorWithCode(t, err, codes.Unauthenticated)

	signature, err = maliciousAccount.Sign([]byte(msg.value))
	require.NoError(t, err)

	err = verifier.Authenticate(ctx, ownerAccount, msg, signature)
	assert.Error(t, err)
	testutil.AssertStatusErrorWithCode(t, err, codes.Unauthenticated)

	err = verifier.Authenticate(ctx, ownerAccount, &testMessage{err: errors.New("encoding failure")}, signature)
	testutil.AssertStatusErrorWithCode(t, err, codes.Internal)
}
