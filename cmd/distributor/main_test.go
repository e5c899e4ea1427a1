package main

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	code_data "github.com/code-payments/code-distributor/pkg/code/data"
	"github.com/code-payments/code-distributor/pkg/testutil"
)

func TestSeedFundedAccounts(t *testing.T) {
	ctx := context.Background()
	log := logrus.StandardLogger().WithField("type", "distributor/app")
	data := code_data.NewTestDataProvider()
	clock := clockwork.NewFakeClock()

	funder := testutil.NewRandomAccount(t).PublicKey().ToBase58()

	var parsed appConfig
	require.NoError(t, mapstructure.Decode(map[string]interface{}{
		"funded_accounts": []interface{}{
			map[interface{}]interface{}{"address": funder, "quarks": 1000},
		},
	}, &parsed))
	require.Len(t, parsed.FundedAccounts, 1)

	require.NoError(t, seedFundedAccounts(ctx, log, data, clock, parsed.FundedAccounts))

	account, err := data.GetCustodyAccount(ctx, funder)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, account.Quarks)
	assert.Equal(t, funder, account.Owner)

	// Restarts leave existing balances alone
	require.NoError(t, seedFundedAccounts(ctx, log, data, clock, []fundedAccount{{Address: funder, Quarks: 5}}))
	account, err = data.GetCustodyAccount(ctx, funder)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, account.Quarks)

	assert.Error(t, seedFundedAccounts(ctx, log, data, clock, []fundedAccount{{Address: "not-a-key", Quarks: 5}}))
	assert.Error(t, seedFundedAccounts(ctx, log, data, clock, []fundedAccount{{Address: testutil.NewRandomAccount(t).PublicKey().ToBase58(), Quarks: 1 << 63}}))
}
