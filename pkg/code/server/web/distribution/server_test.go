package distribution

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/code/common"
	code_data "github.com/code-payments/code-distributor/pkg/code/data"
	"github.com/code-payments/code-distributor/pkg/code/distribution"
	"github.com/code-payments/code-distributor/pkg/pointer"
	"github.com/code-payments/code-distributor/pkg/testutil"
)

func TestServer_FixedAmountFlow(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	alice := testutil.NewRandomAccount(t)
	bob := testutil.NewRandomAccount(t)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "fixed_amount",
		InitialFunding: 1000,
		ClaimAmount:    50,
	})
	require.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, true, body["success"])

	view := body["distribution"].(map[string]any)
	distributionAddress := view["address"].(string)
	assert.Equal(t, "fixed_amount", view["kind"])
	assert.EqualValues(t, 1000, view["total_funded"])
	assert.EqualValues(t, 50, view["claim_amount"])
	assert.Equal(t, funder.PublicKey().ToBase58(), view["authority"])

	statusCode, _ = env.post(t, v1AddEligiblePath, funder, &addEligibleRequestBody{
		Distribution: distributionAddress,
		Party:        alice.PublicKey().ToBase58(),
	})
	require.Equal(t, http.StatusOK, statusCode)

	statusCode, body = env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: distributionAddress})
	require.Equal(t, http.StatusOK, statusCode)
	claim := body["claim"].(map[string]any)
	assert.EqualValues(t, 50, claim["quarks"])
	assert.EqualValues(t, 0, claim["index"])

	statusCode, body = env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: distributionAddress})
	assert.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, distribution.ErrAlreadyClaimed.Error(), body["error"])

	statusCode, body = env.post(t, v1ClaimPath, bob, &claimRequestBody{Distribution: distributionAddress})
	assert.Equal(t, http.StatusForbidden, statusCode)
	assert.Equal(t, distribution.ErrNotEligible.Error(), body["error"])

	statusCode, body = env.get(t, v1GetPath, url.Values{"distribution": {distributionAddress}})
	require.Equal(t, http.StatusOK, statusCode)
	view = body["distribution"].(map[string]any)
	assert.EqualValues(t, 50, view["total_amount_claimed"])
	assert.EqualValues(t, 1, view["num_claimants_served"])

	statusCode, body = env.get(t, v1ClaimPath, url.Values{
		"distribution": {distributionAddress},
		"claimant":     {alice.PublicKey().ToBase58()},
	})
	require.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, alice.PublicKey().ToBase58(), body["claim"].(map[string]any)["claimant"])

	statusCode, _ = env.get(t, v1ClaimPath, url.Values{
		"distribution": {distributionAddress},
		"claimant":     {bob.PublicKey().ToBase58()},
	})
	assert.Equal(t, http.StatusNotFound, statusCode)

	statusCode, body = env.get(t, v1EligibilityPath, url.Values{
		"distribution": {distributionAddress},
		"party":        {alice.PublicKey().ToBase58()},
	})
	require.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, alice.PublicKey().ToBase58(), body["eligibility"].(map[string]any)["party"])

	statusCode, body = env.get(t, v1AuditLogPath, url.Values{"distribution": {distributionAddress}})
	require.Equal(t, http.StatusOK, statusCode)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "initialize", entries[0].(map[string]any)["kind"])
	assert.Equal(t, "add_eligible", entries[1].(map[string]any)["kind"])

	statusCode, body = env.get(t, v1AuditLogPath, url.Values{
		"distribution": {distributionAddress},
		"order":        {"desc"},
		"limit":        {"1"},
	})
	require.Equal(t, http.StatusOK, statusCode)
	entries = body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "add_eligible", entries[0].(map[string]any)["kind"])

	statusCode, body = env.get(t, v1AuditLogPath, url.Values{
		"distribution": {distributionAddress},
		"order":        {"desc"},
		"cursor":       {body["next_cursor"].(string)},
	})
	require.Equal(t, http.StatusOK, statusCode)
	entries = body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "initialize", entries[0].(map[string]any)["kind"])

	for _, params := range []url.Values{
		{"distribution": {distributionAddress}, "cursor": {"0OIl"}},
		{"distribution": {distributionAddress}, "limit": {"zero"}},
		{"distribution": {distributionAddress}, "limit": {"5000"}},
		{"distribution": {distributionAddress}, "order": {"sideways"}},
	} {
		statusCode, _ = env.get(t, v1AuditLogPath, params)
		assert.Equal(t, http.StatusBadRequest, statusCode)
	}
}

func TestServer_AllowlistAdministration(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	authority := testutil.NewRandomAccount(t)
	alice := testutil.NewRandomAccount(t)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "allowlist",
		Authority:      authority.PublicKey().ToBase58(),
		InitialFunding: 500,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	statusCode, _ = env.post(t, v1SetAllowlistPath, funder, &setAllowlistRequestBody{
		Distribution: distributionAddress,
		Entries:      []*allowlistEntryBody{{Party: alice.PublicKey().ToBase58(), Allocation: pointer.Uint64(100)}},
	})
	assert.Equal(t, http.StatusForbidden, statusCode)

	statusCode, _ = env.post(t, v1SetAllowlistPath, authority, &setAllowlistRequestBody{
		Distribution: distributionAddress,
		Entries:      []*allowlistEntryBody{{Party: alice.PublicKey().ToBase58(), Allocation: pointer.Uint64(100)}},
	})
	require.Equal(t, http.StatusOK, statusCode)

	statusCode, _ = env.post(t, v1AddEligiblePath, authority, &addEligibleRequestBody{
		Distribution: distributionAddress,
		Party:        alice.PublicKey().ToBase58(),
		Allocation:   pointer.Uint64(10),
	})
	assert.Equal(t, http.StatusConflict, statusCode)

	statusCode, body = env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: distributionAddress, Quarks: 101})
	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, distribution.ErrAmountExceedsAllocation.Error(), body["error"])

	statusCode, body = env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: distributionAddress, Quarks: 60})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 60, body["claim"].(map[string]any)["quarks"])

	statusCode, body = env.post(t, v1FundPath, funder, &fundRequestBody{Distribution: distributionAddress, Quarks: 200})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 700, body["distribution"].(map[string]any)["total_funded"])

	statusCode, _ = env.post(t, v1FundPath, funder, &fundRequestBody{Distribution: distributionAddress, Quarks: 1000})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, _ = env.post(t, v1SetClaimAmountPath, authority, &setClaimAmountRequestBody{Distribution: distributionAddress, Quarks: 10})
	assert.Equal(t, http.StatusBadRequest, statusCode)
}

func TestServer_MerkleProofClaim(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	carol := testutil.NewRandomAccount(t)
	dave := testutil.NewRandomAccount(t)

	tree, err := distribution.BuildMerkleTree([]*distribution.MerkleAllocation{
		{Claimant: carol, Quarks: 30},
		{Claimant: dave, Quarks: 70},
	})
	require.NoError(t, err)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "merkle_proof",
		InitialFunding: 100,
		MerkleRoot:     hex.EncodeToString(tree.GetRoot()),
		MaxTotalClaim:  100,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	proof, err := tree.GetProofForLeafAtIndex(0)
	require.NoError(t, err)
	var encodedProof []string
	for _, element := range proof {
		encodedProof = append(encodedProof, hex.EncodeToString(element))
	}

	statusCode, body = env.post(t, v1ClaimPath, carol, &claimRequestBody{Distribution: distributionAddress, Quarks: 70, Proof: encodedProof})
	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, distribution.ErrInvalidProof.Error(), body["error"])

	statusCode, _ = env.post(t, v1ClaimPath, carol, &claimRequestBody{Distribution: distributionAddress, Quarks: 30, Proof: []string{"not-hex"}})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, body = env.post(t, v1ClaimPath, carol, &claimRequestBody{Distribution: distributionAddress, Quarks: 30, Proof: encodedProof})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 30, body["claim"].(map[string]any)["quarks"])
}

func TestServer_Authentication(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	other := testutil.NewRandomAccount(t)

	// Signed by another account
	req := &fundRequestBody{Distribution: "distribution", Quarks: 10}
	env.prepare(t, v1FundPath, funder, req)
	req.Signature = env.sign(t, other, req)
	statusCode, body := env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusUnauthorized, statusCode)
	assert.Equal(t, "authentication failed", body["error"])

	// Signed fields were tampered with
	req = &fundRequestBody{Distribution: "distribution", Quarks: 10}
	env.prepare(t, v1FundPath, funder, req)
	req.Quarks = 1000
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	// Malformed signature
	req = &fundRequestBody{Distribution: "distribution", Quarks: 10}
	env.prepare(t, v1FundPath, funder, req)
	req.Signature = "invalid"
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusBadRequest, statusCode)

	// Expired
	req = &fundRequestBody{Distribution: "distribution", Quarks: 10}
	req.Operation = operationForPath(v1FundPath)
	req.Timestamp = env.clock.Now().Add(-time.Hour).Unix()
	req.Signer = funder.PublicKey().ToBase58()
	req.Signature = env.sign(t, funder, req)
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	// Missing operation
	req = &fundRequestBody{Distribution: "distribution", Quarks: 10}
	req.Timestamp = env.clock.Now().Unix()
	req.Signer = funder.PublicKey().ToBase58()
	req.Signature = env.sign(t, funder, req)
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	// Replayed
	statusCode, body = env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "fixed_amount",
		InitialFunding: 100,
		ClaimAmount:    10,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	req = &fundRequestBody{Distribution: distributionAddress, Quarks: 10}
	env.prepare(t, v1FundPath, funder, req)
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	require.Equal(t, http.StatusOK, statusCode)
	statusCode, _ = env.postRaw(t, v1FundPath, req)
	assert.Equal(t, http.StatusConflict, statusCode)

	statusCode, body = env.get(t, v1GetPath, url.Values{"distribution": {distributionAddress}})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 110, body["distribution"].(map[string]any)["total_funded"])
}

func TestServer_SignatureBoundToOperation(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	alice := testutil.NewRandomAccount(t)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "fixed_amount",
		InitialFunding: 100,
		ClaimAmount:    10,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	// A top up signature doesn't authorize changing the claim amount
	fundReq := &fundRequestBody{Distribution: distributionAddress, Quarks: 50}
	env.prepare(t, v1FundPath, funder, fundReq)
	setClaimAmountReq := &setClaimAmountRequestBody{
		signedRequestHeader: fundReq.signedRequestHeader,
		Distribution:        fundReq.Distribution,
		Quarks:              fundReq.Quarks,
	}
	statusCode, _ = env.postRaw(t, v1SetClaimAmountPath, setClaimAmountReq)
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	// Relabelling the operation invalidates the signature
	setClaimAmountReq.Operation = operationForPath(v1SetClaimAmountPath)
	statusCode, _ = env.postRaw(t, v1SetClaimAmountPath, setClaimAmountReq)
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	// A claim signature doesn't authorize funding from the claimant
	claimReq := &claimRequestBody{Distribution: distributionAddress, Quarks: 50}
	env.prepare(t, v1ClaimPath, alice, claimReq)
	statusCode, _ = env.postRaw(t, v1FundPath, &fundRequestBody{
		signedRequestHeader: claimReq.signedRequestHeader,
		Distribution:        claimReq.Distribution,
		Quarks:              claimReq.Quarks,
	})
	assert.Equal(t, http.StatusUnauthorized, statusCode)

	statusCode, body = env.get(t, v1GetPath, url.Values{"distribution": {distributionAddress}})
	require.Equal(t, http.StatusOK, statusCode)
	view := body["distribution"].(map[string]any)
	assert.EqualValues(t, 10, view["claim_amount"])
	assert.EqualValues(t, 100, view["total_funded"])

	// The original request is still good at its own route
	statusCode, _ = env.postRaw(t, v1FundPath, fundReq)
	assert.Equal(t, http.StatusOK, statusCode)
}

func TestServer_ReplayAcrossInstances(t *testing.T) {
	data := code_data.NewTestDataProvider()
	clock := clockwork.NewFakeClockAt(time.Now())

	first := newTestEnv(data, clock, &testOverrides{})
	second := newTestEnv(data, clock, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, data, 10000)

	statusCode, body := first.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "fixed_amount",
		InitialFunding: 1000,
		ClaimAmount:    10,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	fundReq := &fundRequestBody{Distribution: distributionAddress, Quarks: 3000}
	first.prepare(t, v1FundPath, funder, fundReq)

	statusCode, _ = first.postRaw(t, v1FundPath, fundReq)
	require.Equal(t, http.StatusOK, statusCode)

	statusCode, body = second.postRaw(t, v1FundPath, fundReq)
	assert.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, distribution.ErrAlreadyProcessed.Error(), body["error"])

	// Initialization replays are caught too, even though the replay would
	// create a new distribution
	initializeReq := &initializeRequestBody{Kind: "fixed_amount", InitialFunding: 500, ClaimAmount: 10}
	first.prepare(t, v1InitializePath, funder, initializeReq)
	statusCode, _ = first.postRaw(t, v1InitializePath, initializeReq)
	require.Equal(t, http.StatusOK, statusCode)
	statusCode, _ = second.postRaw(t, v1InitializePath, initializeReq)
	assert.Equal(t, http.StatusConflict, statusCode)

	statusCode, body = second.get(t, v1GetPath, url.Values{"distribution": {distributionAddress}})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 4000, body["distribution"].(map[string]any)["total_funded"])

	funderAccount, err := data.GetCustodyAccount(context.Background(), funder.PublicKey().ToBase58())
	require.NoError(t, err)
	assert.EqualValues(t, 10000-1000-3000-500, funderAccount.Quarks)
}

func TestServer_FixedAmountAllowlist(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)
	alice := testutil.NewRandomAccount(t)
	bob := testutil.NewRandomAccount(t)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{
		Kind:           "fixed_amount",
		InitialFunding: 1000,
		ClaimAmount:    10,
	})
	require.Equal(t, http.StatusOK, statusCode)
	distributionAddress := body["distribution"].(map[string]any)["address"].(string)

	statusCode, _ = env.post(t, v1SetAllowlistPath, funder, &setAllowlistRequestBody{
		Distribution: distributionAddress,
		Entries:      []*allowlistEntryBody{{Party: alice.PublicKey().ToBase58(), Allocation: pointer.Uint64(10)}},
	})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, _ = env.post(t, v1SetAllowlistPath, funder, &setAllowlistRequestBody{
		Distribution: distributionAddress,
		Entries:      []*allowlistEntryBody{{Party: alice.PublicKey().ToBase58()}},
	})
	require.Equal(t, http.StatusOK, statusCode)

	statusCode, _ = env.post(t, v1SetClaimAmountPath, funder, &setClaimAmountRequestBody{Distribution: distributionAddress, Quarks: 50})
	require.Equal(t, http.StatusOK, statusCode)

	statusCode, body = env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: distributionAddress})
	require.Equal(t, http.StatusOK, statusCode)
	assert.EqualValues(t, 50, body["claim"].(map[string]any)["quarks"])

	statusCode, _ = env.post(t, v1ClaimPath, bob, &claimRequestBody{Distribution: distributionAddress})
	assert.Equal(t, http.StatusForbidden, statusCode)
}

func TestServer_ClaimRateLimit(t *testing.T) {
	env := setup(t, &testOverrides{claimRateLimit: 1})

	alice := testutil.NewRandomAccount(t)

	statusCode, _ := env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: "unknown"})
	assert.Equal(t, http.StatusNotFound, statusCode)

	statusCode, body := env.post(t, v1ClaimPath, alice, &claimRequestBody{Distribution: "unknown"})
	assert.Equal(t, http.StatusTooManyRequests, statusCode)
	assert.Equal(t, "too many claim attempts", body["error"])
}

func TestServer_BadRequests(t *testing.T) {
	env := setup(t, &testOverrides{})

	funder := testutil.SetupFundedAccount(t, env.data, 1000)

	statusCode, _ := env.post(t, v1InitializePath, funder, &initializeRequestBody{Kind: "unknown"})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, body := env.post(t, v1InitializePath, funder, &initializeRequestBody{Kind: "fixed_amount"})
	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, distribution.ErrInvalidParameters.Error(), body["error"])

	statusCode, _ = env.post(t, v1AddEligiblePath, funder, &addEligibleRequestBody{Distribution: "unknown", Party: "party"})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, _ = env.get(t, v1GetPath, nil)
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, _ = env.get(t, v1GetPath, url.Values{"distribution": {"unknown"}})
	assert.Equal(t, http.StatusNotFound, statusCode)

	statusCode, _ = env.get(t, v1ClaimPath, url.Values{"distribution": {"unknown"}, "claimant": {"claimant"}})
	assert.Equal(t, http.StatusBadRequest, statusCode)

	httpReq := httptest.NewRequest(http.MethodPost, v1PathPrefix+v1ClaimPath, bytes.NewBufferString("{"))
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, httpReq)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

type testEnv struct {
	data    code_data.Provider
	clock   *clockwork.FakeClock
	handler http.Handler
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	return newTestEnv(code_data.NewTestDataProvider(), clockwork.NewFakeClockAt(time.Now()), overrides)
}

// newTestEnv runs a server with its own controller over data, the way a
// separate process sharing the database would
func newTestEnv(data code_data.Provider, clock *clockwork.FakeClock, overrides *testOverrides) *testEnv {
	controller := distribution.NewController(data, distribution.WithEnvConfigs(), clock)
	server := NewDistributionServer(controller, withManualTestOverrides(overrides), clock)

	return &testEnv{
		data:    data,
		clock:   clock,
		handler: server.Router(),
	}
}

func (e *testEnv) sign(t *testing.T, signer *common.Account, req signedRequest) string {
	message, err := req.SigningBytes()
	require.NoError(t, err)

	signature, err := signer.Sign(message)
	require.NoError(t, err)

	return base58.Encode(signature)
}

// prepare signs req for the operation at path. Each call is given a distinct
// timestamp, so identical requests aren't treated as replays.
func (e *testEnv) prepare(t *testing.T, path string, signer *common.Account, req signedRequest) {
	e.clock.Advance(time.Second)

	header := req.header()
	header.Operation = operationForPath(path)
	header.Signer = signer.PublicKey().ToBase58()
	header.Timestamp = e.clock.Now().Unix()
	header.Signature = e.sign(t, signer, req)
}

func (e *testEnv) post(t *testing.T, path string, signer *common.Account, req signedRequest) (int, map[string]any) {
	e.prepare(t, path, signer, req)
	return e.postRaw(t, path, req)
}

func (e *testEnv) postRaw(t *testing.T, path string, req signedRequest) (int, map[string]any) {
	encoded, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, v1PathPrefix+path, bytes.NewReader(encoded)).WithContext(context.Background())
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, httpReq)

	return recorder.Code, decodeResponse(t, recorder)
}

func (e *testEnv) get(t *testing.T, path string, query url.Values) (int, map[string]any) {
	target := v1PathPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	httpReq := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, httpReq)

	return recorder.Code, decodeResponse(t, recorder)
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	assert.Equal(t, jsonContentTypeHeaderValue, recorder.Header().Get(contentTypeHeaderName))

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}
