package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/planetpulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareWithStructuredError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return apperrors.ValidationError("invalid input")
	})

	err := handler(c)
	require.NoError(t, err) // the middleware renders the error instead of returning it

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid input", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestMiddlewareWithStandardError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return errors.New("standard error")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, apperrors.TypeInternal, resp.Type)
}

func TestMiddlewareWithNoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestMiddlewareWithFields(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return apperrors.NotFoundError("planet not found").
			WithField("planet_id", "42").
			WithField("source", "cache")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "planet not found", resp.Error)
	assert.Equal(t, apperrors.TypeNotFound, resp.Type)
	assert.Len(t, resp.Context, 2)
	assert.Equal(t, "42", resp.Context["planet_id"])
	assert.Equal(t, "cache", resp.Context["source"])
}

func TestMiddlewareAllErrorTypes(t *testing.T) {
	tests := []struct {
		name       string
		err        *apperrors.Error
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"validation", apperrors.ValidationError("invalid"), http.StatusBadRequest, apperrors.TypeValidation},
		{"not_found", apperrors.NotFoundError("missing"), http.StatusNotFound, apperrors.TypeNotFound},
		{"conflict", apperrors.ConflictError("duplicate"), http.StatusConflict, apperrors.TypeConflict},
		{"rate_limited", apperrors.RateLimitedError("slow down"), http.StatusTooManyRequests, apperrors.TypeRateLimited},
		{"internal", apperrors.InternalError("failed", errors.New("cause")), http.StatusInternalServerError, apperrors.TypeInternal},
		{"external", apperrors.ExternalError("publish failed", errors.New("timeout")), http.StatusBadGateway, apperrors.TypeExternal},
		{"unavailable", apperrors.UnavailableError("full"), http.StatusServiceUnavailable, apperrors.TypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
				return tt.err
			})

			err := handler(c)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
		})
	}
}

func TestMiddlewarePassesThroughEchoErrors(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	httpErr := echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	handler := ErrorHandlingMiddleware(m)(func(c echo.Context) error {
		return httpErr
	})

	err := handler(c)

	assert.Same(t, httpErr, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(string(apperrors.TypeNotFound))))
}

func TestMiddlewareRecordsErrorMetric(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())

	e := echo.New()
	handler := ErrorHandlingMiddleware(m)(func(c echo.Context) error {
		return apperrors.ConflictError("planet already exists")
	})

	for range 2 {
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/planets", nil), httptest.NewRecorder())
		require.NoError(t, handler(c))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Errors.WithLabelValues(string(apperrors.TypeConflict))))
}

func TestCorrelationMiddleware(t *testing.T) {
	e := echo.New()

	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		id, ok := correlation.ID(c.Request().Context())
		require.True(t, ok)
		seen = id
		return c.NoContent(http.StatusOK)
	})

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/planets", nil), rec)

		require.NoError(t, handler(c))

		assert.Len(t, seen, 8)
		assert.Equal(t, seen, rec.Header().Get(correlationHeader))
	})

	t.Run("reuses caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/planets", nil)
		req.Header.Set(correlationHeader, "abc123")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler(c))

		assert.Equal(t, "abc123", seen)
		assert.Equal(t, "abc123", rec.Header().Get(correlationHeader))
	})
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		httpErr    *echo.HTTPError
		wantType   apperrors.ErrorType
		wantStatus int
	}{
		{"bad_request", echo.NewHTTPError(http.StatusBadRequest, "bad request"), apperrors.TypeValidation, http.StatusBadRequest},
		{"body_too_large", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too large"), apperrors.TypeValidation, http.StatusBadRequest},
		{"not_found", echo.NewHTTPError(http.StatusNotFound, "not found"), apperrors.TypeNotFound, http.StatusNotFound},
		{"conflict", echo.NewHTTPError(http.StatusConflict, "conflict"), apperrors.TypeConflict, http.StatusConflict},
		{"too_many_requests", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), apperrors.TypeRateLimited, http.StatusTooManyRequests},
		{"bad_gateway", echo.NewHTTPError(http.StatusBadGateway, "bad gateway"), apperrors.TypeExternal, http.StatusBadGateway},
		{"service_unavailable", echo.NewHTTPError(http.StatusServiceUnavailable, "unavailable"), apperrors.TypeUnavailable, http.StatusServiceUnavailable},
		{"internal_server_error", echo.NewHTTPError(http.StatusInternalServerError, "internal error"), apperrors.TypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapHTTPError(tt.httpErr)

			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.wantStatus, err.HTTPStatus())
		})
	}
}

func TestWrapHTTPErrorWithInternalCause(t *testing.T) {
	cause := errors.New("underlying cause")
	httpErr := echo.NewHTTPError(http.StatusInternalServerError, "wrapped")
	httpErr.Internal = cause

	err := WrapHTTPError(httpErr)

	assert.Equal(t, apperrors.TypeInternal, err.Type)
	assert.Equal(t, cause, err.Cause)
}

func TestWrapHTTPErrorWithNonStringMessage(t *testing.T) {
	httpErr := echo.NewHTTPError(http.StatusBadRequest, 12345)

	err := WrapHTTPError(httpErr)

	assert.Equal(t, "internal server error", err.Message) // fallback message
	assert.Equal(t, apperrors.TypeValidation, err.Type)
}
