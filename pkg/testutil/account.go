package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/code/common"
	code_data "github.com/code-payments/code-distributor/pkg/code/data"
	"github.com/code-payments/code-distributor/pkg/code/data/custody"
)

func NewRandomAccount(t *testing.T) *common.Account {
	account, err := common.NewRandomAccount()
	require.NoError(t, err)

	return account
}

// SetupFundedAccount opens a custody account for a new random owner holding
// the provided balance
func SetupFundedAccount(t *testing.T, data code_data.Provider, quarks uint64) *common.Account {
	account := NewRandomAccount(t)
	require.NoError(t, data.CreateCustodyAccount(context.Background(), &custody.AccountRecord{
		Address: account.PublicKey().ToBase58(),
		Owner:   account.PublicKey().ToBase58(),
		Quarks:  quarks,
	}))
	return account
}
