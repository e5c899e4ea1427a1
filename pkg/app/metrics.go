package app

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/code-payments/code-distributor/pkg/metrics"
)

const (
	httpRequestRouteAttributeKey = "http.request.route"
	httpRequestIdAttributeKey    = "http.request.id"

	httpResponseStatusCodeAttributeKey      = "http.response.statusCode"
	httpResponseStatusCodeLevelAttributeKey = "http.response.statusCodeLevel"

	infoLevel    = "info"
	warningLevel = "warning"
	errorLevel   = "error"
)

// newRelicMiddleware starts a New Relic transaction for every request and
// injects the application into the request context for custom events in
// downstream code.
func newRelicMiddleware(app *newrelic.Application) func(http.Handler) http.Handler {
	if app == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := app.StartTransaction(r.Method + " " + r.URL.Path)
			defer m.End()

			m.SetWebRequestHTTP(r)

			ctx := metrics.WithNewRelic(r.Context(), app)
			ctx = newrelic.NewContext(ctx, m)

			ww := middleware.NewWrapResponseWriter(m.SetWebResponse(w), r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if routeCtx := chi.RouteContext(ctx); routeCtx != nil && len(routeCtx.RoutePattern()) > 0 {
				m.SetName(r.Method + " " + routeCtx.RoutePattern())
				m.AddAttribute(httpRequestRouteAttributeKey, routeCtx.RoutePattern())
			}
			if requestId := middleware.GetReqID(ctx); len(requestId) > 0 {
				m.AddAttribute(httpRequestIdAttributeKey, requestId)
			}

			includeHTTPStatusCode(m, ww.Status())
		})
	}
}

func includeHTTPStatusCode(m *newrelic.Transaction, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	level := infoLevel
	switch {
	case statusCode >= http.StatusInternalServerError:
		level = errorLevel
	case statusCode == http.StatusForbidden,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooManyRequests:
		level = warningLevel
	}

	m.AddAttribute(httpResponseStatusCodeAttributeKey, statusCode)
	m.AddAttribute(httpResponseStatusCodeLevelAttributeKey, level)

	if level == errorLevel {
		m.NoticeError(&newrelic.Error{
			Message: http.StatusText(statusCode),
			Class:   "HTTP Status: " + strconv.Itoa(statusCode),
		})
	}
}
