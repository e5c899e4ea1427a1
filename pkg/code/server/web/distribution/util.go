package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/code-payments/code-distributor/pkg/code/distribution"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// HandleGrpcErrorInWebContext maps a gRPC status error to the HTTP status code
// and the error that's safe to surface to the caller
func HandleGrpcErrorInWebContext(w http.ResponseWriter, err error) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	}

	statusErr, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, errors.New("internal server error")
	}

	switch statusErr.Code() {
	case codes.OK:
		return http.StatusOK, nil
	case codes.InvalidArgument:
		return http.StatusBadRequest, errors.New(statusErr.Message())
	case codes.NotFound:
		return http.StatusNotFound, errors.New(statusErr.Message())
	case codes.AlreadyExists:
		return http.StatusConflict, errors.New(statusErr.Message())
	case codes.FailedPrecondition:
		return http.StatusBadRequest, errors.New(statusErr.Message())
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, errors.New(statusErr.Message())
	case codes.Unauthenticated:
		return http.StatusUnauthorized, errors.New("authentication failed")
	case codes.PermissionDenied:
		if len(statusErr.Message()) > 0 {
			return http.StatusForbidden, errors.New(statusErr.Message())
		}
		return http.StatusForbidden, errors.New("permission denied")
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusRequestTimeout, errors.New("request timed out")
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}

// toStatusError converts a controller error into a gRPC status error. The
// domain error's message is kept, anything else is internal.
func toStatusError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, mapping := range []struct {
		target error
		code   codes.Code
	}{
		{distribution.ErrInvalidParameters, codes.InvalidArgument},
		{distribution.ErrAmountExceedsAllocation, codes.InvalidArgument},
		{distribution.ErrInvalidProof, codes.InvalidArgument},
		{distribution.ErrDistributionNotFound, codes.NotFound},
		{distribution.ErrClaimNotFound, codes.NotFound},
		{distribution.ErrAlreadyClaimed, codes.AlreadyExists},
		{distribution.ErrAlreadyListed, codes.AlreadyExists},
		{distribution.ErrAlreadyProcessed, codes.AlreadyExists},
		{distribution.ErrNotEligible, codes.PermissionDenied},
		{distribution.ErrInsufficientAuthorization, codes.PermissionDenied},
		{distribution.ErrCapacityExceeded, codes.ResourceExhausted},
		{distribution.ErrAggregateCapExceeded, codes.ResourceExhausted},
		{distribution.ErrTransferFailure, codes.FailedPrecondition},
		{distribution.ErrClaimsDisabled, codes.FailedPrecondition},
	} {
		if errors.Is(err, mapping.target) {
			return status.Error(mapping.code, mapping.target.Error())
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "")
	}

	return status.Error(codes.Internal, "")
}
