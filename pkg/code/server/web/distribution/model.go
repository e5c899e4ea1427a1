package distribution

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-distributor/pkg/code/auth"
	"github.com/code-payments/code-distributor/pkg/code/common"
	distribution_data "github.com/code-payments/code-distributor/pkg/code/data/distribution"
	"github.com/code-payments/code-distributor/pkg/code/distribution"
	"github.com/code-payments/code-distributor/pkg/database/query"
	"github.com/code-payments/code-distributor/pkg/merkletree"
)

const maxRequestBodySize = 1 << 20

// signedRequestHeader is common to every mutating request. The signature
// covers the JSON encoding of the request body with the signature field
// omitted. Operation names the route the signature is valid for, so a
// signature can't be moved to another operation with a similar body.
type signedRequestHeader struct {
	Operation string `json:"operation"`
	Signer    string `json:"signer"`
	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// operationForPath is the operation name signed requests to path must carry
func operationForPath(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (h *signedRequestHeader) header() *signedRequestHeader {
	return h
}

type signedRequest interface {
	auth.Message

	header() *signedRequestHeader
}

type initializeRequestBody struct {
	signedRequestHeader

	Kind            string `json:"kind"`
	Authority       string `json:"authority,omitempty"`
	InitialFunding  uint64 `json:"initial_funding"`
	ClaimAmount     uint64 `json:"claim_amount,omitempty"`
	MerkleRoot      string `json:"merkle_root,omitempty"`
	MaxTotalClaim   uint64 `json:"max_total_claim,omitempty"`
	MaxNumClaimants uint64 `json:"max_num_claimants,omitempty"`
	ClaimCapacity   uint64 `json:"claim_capacity,omitempty"`
}

func (b initializeRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

func (b *initializeRequestBody) toParams() (*distribution.InitializeParams, error) {
	kind := distribution_data.KindFromString(b.Kind)
	if kind == distribution_data.KindUnknown {
		return nil, errors.New("kind is invalid")
	}

	params := &distribution.InitializeParams{
		Kind:            kind,
		InitialFunding:  b.InitialFunding,
		ClaimAmount:     b.ClaimAmount,
		MaxTotalClaim:   b.MaxTotalClaim,
		MaxNumClaimants: b.MaxNumClaimants,
		ClaimCapacity:   b.ClaimCapacity,
	}

	if len(b.Authority) > 0 {
		authority, err := common.NewAccountFromPublicKeyString(b.Authority)
		if err != nil {
			return nil, errors.New("authority is not a public key")
		}
		params.Authority = authority
	}

	if len(b.MerkleRoot) > 0 {
		root, err := decodeHash(b.MerkleRoot)
		if err != nil {
			return nil, errors.New("merkle root is invalid")
		}
		params.MerkleRoot = root
	}

	return params, nil
}

type claimRequestBody struct {
	signedRequestHeader

	Distribution string   `json:"distribution"`
	Quarks       uint64   `json:"quarks,omitempty"`
	Proof        []string `json:"proof,omitempty"`
}

func (b claimRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

func (b *claimRequestBody) toClaimRequest() (*distribution.ClaimRequest, error) {
	if len(b.Distribution) == 0 {
		return nil, errors.New("distribution is required")
	}

	proof := make([]merkletree.Hash, len(b.Proof))
	for i, encoded := range b.Proof {
		decoded, err := decodeHash(encoded)
		if err != nil {
			return nil, errors.Errorf("proof element %d is invalid", i)
		}
		proof[i] = decoded
	}

	return &distribution.ClaimRequest{
		Distribution: b.Distribution,
		Quarks:       b.Quarks,
		Proof:        proof,
	}, nil
}

type addEligibleRequestBody struct {
	signedRequestHeader

	Distribution string  `json:"distribution"`
	Party        string  `json:"party"`
	Allocation   *uint64 `json:"allocation,omitempty"`
}

func (b addEligibleRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

type fundRequestBody struct {
	signedRequestHeader

	Distribution string `json:"distribution"`
	Quarks       uint64 `json:"quarks"`
}

func (b fundRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

type setClaimAmountRequestBody struct {
	signedRequestHeader

	Distribution string `json:"distribution"`
	Quarks       uint64 `json:"quarks"`
}

func (b setClaimAmountRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

// allowlistEntryBody omits the allocation for fixed amount distributions
type allowlistEntryBody struct {
	Party      string  `json:"party"`
	Allocation *uint64 `json:"allocation,omitempty"`
}

type setAllowlistRequestBody struct {
	signedRequestHeader

	Distribution string                `json:"distribution"`
	Entries      []*allowlistEntryBody `json:"entries"`
}

func (b setAllowlistRequestBody) SigningBytes() ([]byte, error) {
	b.Signature = ""
	return json.Marshal(b)
}

func (b *setAllowlistRequestBody) toEntries() ([]*distribution.AllowlistEntry, error) {
	entries := make([]*distribution.AllowlistEntry, len(b.Entries))
	for i, entry := range b.Entries {
		if entry == nil {
			return nil, errors.Errorf("entry %d is missing", i)
		}

		party, err := common.NewAccountFromPublicKeyString(entry.Party)
		if err != nil {
			return nil, errors.Errorf("entry %d party is not a public key", i)
		}

		entries[i] = &distribution.AllowlistEntry{
			Party:      party,
			Allocation: entry.Allocation,
		}
	}
	return entries, nil
}

// decodeSignedRequestFromHttpContext decodes the JSON body into req and
// returns the signer and signature it carries. The signature isn't verified.
func decodeSignedRequestFromHttpContext(r *http.Request, req signedRequest) (*common.Account, []byte, time.Time, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	err = json.Unmarshal(body, req)
	if err != nil {
		return nil, nil, time.Time{}, errors.New("request body is not valid json")
	}

	header := req.header()

	signer, err := common.NewAccountFromPublicKeyString(header.Signer)
	if err != nil {
		return nil, nil, time.Time{}, errors.New("signer is not a public key")
	}

	signature, err := base58.Decode(header.Signature)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return nil, nil, time.Time{}, errors.New("signature is invalid")
	}

	return signer, signature, time.Unix(header.Timestamp, 0), nil
}

// decodePagingQueryParams parses the optional cursor, limit and order query
// parameters of list endpoints
func decodePagingQueryParams(values url.Values) ([]query.Option, error) {
	var opts []query.Option

	if encoded := values.Get(cursorQueryParam); len(encoded) > 0 {
		cursor, err := query.CursorFromBase58(encoded)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithCursor(cursor))
	}

	if encoded := values.Get(limitQueryParam); len(encoded) > 0 {
		limit, err := strconv.ParseUint(encoded, 10, 64)
		if err != nil || limit == 0 {
			return nil, errors.New("limit is invalid")
		}
		opts = append(opts, query.WithLimit(limit))
	}

	if encoded := values.Get(orderQueryParam); len(encoded) > 0 {
		direction, err := query.ToOrdering(encoded)
		if err != nil {
			return nil, errors.New("order is invalid")
		}
		opts = append(opts, query.WithDirection(direction))
	}

	return opts, nil
}

func decodeHash(value string) (merkletree.Hash, error) {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != merkletree.HashSize {
		return nil, errors.New("invalid hash length")
	}
	return decoded, nil
}

func toDistributionView(record *distribution_data.Record) map[string]any {
	view := map[string]any{
		"address":              record.Address,
		"kind":                 record.Kind.String(),
		"authority":            record.Authority,
		"funder":               record.Funder,
		"custody_account":      record.CustodyAccount,
		"max_total_claim":      record.MaxTotalClaim,
		"max_num_claimants":    record.MaxNumClaimants,
		"claim_capacity":       record.ClaimCapacity,
		"total_funded":         record.TotalFunded,
		"total_amount_claimed": record.TotalAmountClaimed,
		"num_claimants_served": record.NumClaimantsServed,
		"created_at":           record.CreatedAt.UTC(),
		"last_updated_at":      record.LastUpdatedAt.UTC(),
	}

	switch record.Kind {
	case distribution_data.KindFixedAmount:
		view["claim_amount"] = record.ClaimAmount
	case distribution_data.KindMerkleProof:
		view["merkle_root"] = hex.EncodeToString(record.MerkleRoot)
	}

	return view
}

func toClaimView(record *distribution_data.ClaimRecord) map[string]any {
	return map[string]any{
		"distribution": record.Distribution,
		"claimant":     record.Claimant,
		"quarks":       record.Quarks,
		"index":        record.Index,
		"transfer_id":  record.TransferId,
		"created_at":   record.CreatedAt.UTC(),
	}
}

func toEligibilityView(record *distribution_data.EligibilityRecord) map[string]any {
	view := map[string]any{
		"distribution": record.Distribution,
		"party":        record.Party,
	}
	if record.Allocation != nil {
		view["allocation"] = *record.Allocation
	}
	return view
}

func toAuditView(record *distribution_data.AuditRecord) map[string]any {
	return map[string]any{
		"id":         record.AuditId,
		"kind":       string(record.Kind),
		"actor":      record.Actor,
		"details":    json.RawMessage(record.Details),
		"created_at": record.CreatedAt.UTC(),
	}
}
