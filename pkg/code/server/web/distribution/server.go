package distribution

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/code-payments/code-distributor/pkg/cache"
	"github.com/code-payments/code-distributor/pkg/code/auth"
	"github.com/code-payments/code-distributor/pkg/code/common"
	"github.com/code-payments/code-distributor/pkg/code/distribution"
	"github.com/code-payments/code-distributor/pkg/database/query"
	rate_util "github.com/code-payments/code-distributor/pkg/rate"
)

const (
	v1PathPrefix = "/v1/distribution"

	v1InitializePath     = "/initialize"
	v1ClaimPath          = "/claim"
	v1AddEligiblePath    = "/addEligible"
	v1FundPath           = "/fund"
	v1SetClaimAmountPath = "/setClaimAmount"
	v1SetAllowlistPath   = "/setAllowlist"
	v1GetPath            = "/get"
	v1EligibilityPath    = "/eligibility"
	v1AuditLogPath       = "/auditLog"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"

	distributionQueryParam = "distribution"
	claimantQueryParam     = "claimant"
	partyQueryParam        = "party"
	cursorQueryParam       = "cursor"
	limitQueryParam        = "limit"
	orderQueryParam        = "order"
)

type Server struct {
	log   *logrus.Entry
	conf  *conf
	clock clockwork.Clock

	controller *distribution.Controller
	auth       *auth.SignatureVerifier

	claimLimiter   rate_util.Limiter
	seenSignatures cache.Cache
}

func NewDistributionServer(controller *distribution.Controller, configProvider ConfigProvider, clock clockwork.Clock) *Server {
	ctx := context.Background()

	conf := configProvider()
	return &Server{
		log:   logrus.StandardLogger().WithField("type", "distribution/web/server"),
		conf:  conf,
		clock: clock,

		controller: controller,
		auth:       auth.NewSignatureVerifier(),

		claimLimiter:   rate_util.NewLimiterOrNoop(conf.claimRateLimit.Get(ctx)),
		seenSignatures: cache.NewCache(int(conf.signatureCacheSize.Get(ctx))),
	}
}

// Router returns the HTTP routes served under the /v1/distribution prefix
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route(v1PathPrefix, func(r chi.Router) {
		r.Post(v1InitializePath, s.initializeHandler(v1InitializePath))
		r.Post(v1ClaimPath, s.claimHandler(v1ClaimPath))
		r.Get(v1ClaimPath, s.getClaimHandler(v1ClaimPath))
		r.Post(v1AddEligiblePath, s.addEligibleHandler(v1AddEligiblePath))
		r.Post(v1FundPath, s.fundHandler(v1FundPath))
		r.Post(v1SetClaimAmountPath, s.setClaimAmountHandler(v1SetClaimAmountPath))
		r.Post(v1SetAllowlistPath, s.setAllowlistHandler(v1SetAllowlistPath))
		r.Get(v1GetPath, s.getDistributionHandler(v1GetPath))
		r.Get(v1EligibilityPath, s.getEligibilityHandler(v1EligibilityPath))
		r.Get(v1AuditLogPath, s.getAuditLogHandler(v1AuditLogPath))
	})

	return r
}

func (s *Server) initializeHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req initializeRequestBody
		ctx, funder, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		params, err := req.toParams()
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		record, err := s.controller.Initialize(ctx, funder, params)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["distribution"] = toDistributionView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) claimHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req claimRequestBody
		ctx, claimant, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		allowed, err := s.claimLimiter.Allow(claimant.PublicKey().ToBase58())
		if err != nil {
			log.WithError(err).Warn("failure checking claim rate limit")
		} else if !allowed {
			return toFailureResponse(log, status.Error(codes.ResourceExhausted, "too many claim attempts"))
		}

		claimReq, err := req.toClaimRequest()
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		claim, err := s.controller.Claim(ctx, claimant, claimReq)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["claim"] = toClaimView(claim)
		return http.StatusOK, respBody
	})
}

func (s *Server) addEligibleHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req addEligibleRequestBody
		ctx, authority, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		party, err := common.NewAccountFromPublicKeyString(req.Party)
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("party is not a public key"))
		}

		record, err := s.controller.AddEligible(ctx, authority, req.Distribution, party, req.Allocation)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["eligibility"] = toEligibilityView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) fundHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req fundRequestBody
		ctx, funder, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		record, err := s.controller.Fund(ctx, funder, req.Distribution, req.Quarks)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["distribution"] = toDistributionView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) setClaimAmountHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req setClaimAmountRequestBody
		ctx, authority, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		record, err := s.controller.SetClaimAmount(ctx, authority, req.Distribution, req.Quarks)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["distribution"] = toDistributionView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) setAllowlistHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		var req setAllowlistRequestBody
		ctx, authority, err := s.authenticateRequest(r, path, &req)
		if err != nil {
			return toFailureResponse(log, err)
		}

		entries, err := req.toEntries()
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		err = s.controller.SetAllowlist(ctx, authority, req.Distribution, entries)
		if err != nil {
			return toFailureResponse(log, err)
		}

		return http.StatusOK, NewGenericApiSuccessResponseBody()
	})
}

func (s *Server) getDistributionHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		ctx := r.Context()

		distributionAddress := r.URL.Query().Get(distributionQueryParam)
		if len(distributionAddress) == 0 {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("distribution query parameter missing"))
		}

		record, err := s.controller.GetDistribution(ctx, distributionAddress)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["distribution"] = toDistributionView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) getClaimHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		ctx := r.Context()

		distributionAddress := r.URL.Query().Get(distributionQueryParam)
		if len(distributionAddress) == 0 {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("distribution query parameter missing"))
		}

		claimant, err := common.NewAccountFromPublicKeyString(r.URL.Query().Get(claimantQueryParam))
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("claimant is not a public key"))
		}

		claim, err := s.controller.GetClaim(ctx, distributionAddress, claimant)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["claim"] = toClaimView(claim)
		return http.StatusOK, respBody
	})
}

func (s *Server) getEligibilityHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		ctx := r.Context()

		distributionAddress := r.URL.Query().Get(distributionQueryParam)
		if len(distributionAddress) == 0 {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("distribution query parameter missing"))
		}

		party, err := common.NewAccountFromPublicKeyString(r.URL.Query().Get(partyQueryParam))
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("party is not a public key"))
		}

		record, err := s.controller.GetEligibility(ctx, distributionAddress, party)
		if err != nil {
			return toFailureResponse(log, err)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["eligibility"] = toEligibilityView(record)
		return http.StatusOK, respBody
	})
}

func (s *Server) getAuditLogHandler(path string) http.HandlerFunc {
	return s.withJsonResponse(path, func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody) {
		ctx := r.Context()

		distributionAddress := r.URL.Query().Get(distributionQueryParam)
		if len(distributionAddress) == 0 {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("distribution query parameter missing"))
		}

		opts, err := decodePagingQueryParams(r.URL.Query())
		if err != nil {
			return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
		}

		records, err := s.controller.GetAuditLog(ctx, distributionAddress, opts...)
		if err != nil {
			return toFailureResponse(log, err)
		}

		entries := make([]map[string]any, len(records))
		for i, record := range records {
			entries[i] = toAuditView(record)
		}

		respBody := NewGenericApiSuccessResponseBody()
		respBody["entries"] = entries
		if len(records) > 0 {
			respBody["next_cursor"] = query.ToCursor(records[len(records)-1].Id).ToBase58()
		}
		return http.StatusOK, respBody
	})
}

// authenticateRequest decodes a signed request into req, and verifies it was
// signed by its signer recently, for the operation served at path, and hasn't
// been seen before. The returned context carries the signature as the
// command's idempotency key, which catches replays this process hasn't seen.
func (s *Server) authenticateRequest(r *http.Request, path string, req signedRequest) (context.Context, *common.Account, error) {
	ctx := r.Context()

	signer, signature, timestamp, err := decodeSignedRequestFromHttpContext(r, req)
	if err != nil {
		return nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if req.header().Operation != operationForPath(path) {
		return nil, nil, status.Error(codes.Unauthenticated, "request wasn't signed for this operation")
	}

	maxRequestAge := s.conf.maxRequestAge.Get(ctx)
	age := s.clock.Since(timestamp)
	if age > maxRequestAge || age < -maxRequestAge {
		return nil, nil, status.Error(codes.Unauthenticated, "request timestamp is outside the allowed window")
	}

	if err := s.auth.Authenticate(ctx, signer, req, signature); err != nil {
		return nil, nil, err
	}

	err = s.seenSignatures.Insert(base58.Encode(signature), struct{}{}, 1)
	if err == cache.ErrKeyExists {
		return nil, nil, status.Error(codes.AlreadyExists, distribution.ErrAlreadyProcessed.Error())
	} else if err != nil {
		return nil, nil, err
	}

	return distribution.WithIdempotencyKey(ctx, signature), signer, nil
}

func (s *Server) withJsonResponse(path string, handle func(r *http.Request, log *logrus.Entry) (int, GenericApiResponseBody)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": middleware.GetReqID(r.Context()),
		})

		statusCode, body := handle(r, log)

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Warn("failed to write body")
		}
	}
}

func toFailureResponse(log *logrus.Entry, err error) (int, GenericApiResponseBody) {
	statusErr := toStatusError(err)
	if status.Code(statusErr) == codes.Internal {
		log.WithError(err).Warn("failure handling request")
	}

	statusCode, err := HandleGrpcErrorInWebContext(nil, statusErr)
	return statusCode, NewGenericApiFailureResponseBody(err)
}
