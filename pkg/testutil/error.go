package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AssertStatusErrorWithCode fails the test unless err carries the gRPC status
// code, which the HTTP layer maps onto a response status
func AssertStatusErrorWithCode(t *testing.T, err error, code codes.Code) {
	t.Helper()

	require.Error(t, err)
	_, isStatus := status.FromError(err)
	require.True(t, isStatus, "not a status error: %v", err)
	assert.Equal(t, code, status.Code(err), err.Error())
}
