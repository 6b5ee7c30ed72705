package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codfleet/api/internal/platform/auth"
	"github.com/codfleet/api/internal/platform/httpx"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/services"
)

const defaultBodyLimit = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// serviceErrorCodes gives operation specific errors a stable code. Anything not listed falls back
// to its taxonomy member.
var serviceErrorCodes = []struct {
	err  error
	code string
}{
	{services.ErrOrderNotFound, "order_not_found"},
	{services.ErrOrderTerminal, "order_terminal"},
	{services.ErrOrderAlreadyAssigned, "order_already_assigned"},
	{services.ErrOrderNotShipped, "order_not_shipped"},
	{services.ErrOrderAlreadySettled, "order_already_settled"},
	{services.ErrProductUnavailable, "product_unavailable"},
	{services.ErrCityMismatch, "city_mismatch"},
	{services.ErrCountryMismatch, "country_mismatch"},
	{services.ErrSubmissionInProgress, "submission_in_progress"},
	{services.ErrProductNotFound, "product_not_found"},
	{services.ErrRemittanceNotFound, "remittance_not_found"},
	{services.ErrRemittanceAlreadyAccepted, "remittance_already_accepted"},
	{services.ErrActorNotFound, "actor_not_found"},
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, code := http.StatusInternalServerError, "internal_error"
	message := "failed to process request"
	switch {
	case errors.Is(err, services.ErrValidation):
		status, code, message = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, services.ErrAuthorization):
		status, code, message = http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, services.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, services.ErrConflict):
		status, code, message = http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, services.ErrDependencyFailure):
		status, code, message = http.StatusServiceUnavailable, "dependency_unavailable", "a backing service is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	}
	for _, entry := range serviceErrorCodes {
		if errors.Is(err, entry.err) {
			code = entry.code
			break
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

// requireActor returns the authenticated actor id or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.ActorID(), true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a JSON object into dst and writes the 4xx itself on failure. Unknown
// fields are rejected. When optional is set an empty body leaves dst untouched.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, defaultBodyLimit)
	switch {
	case errors.Is(err, errEmptyBody) && optional:
		return true
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return false
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func writePaginationError(ctx context.Context, w http.ResponseWriter, err error) {
	message := "invalid list parameters"
	switch {
	case errors.Is(err, pagination.ErrInvalidPageSize):
		message = "pageSize must be a positive integer"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		message = "pageToken is invalid"
	case errors.Is(err, pagination.ErrInvalidFilter):
		message = err.Error()
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

func parseTimeParam(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.DateOnly, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 timestamp or YYYY-MM-DD date")
}

// parseOptionalTime reads query parameter name, writing a 400 when it is malformed.
func parseOptionalTime(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	ts, err := parseTimeParam(raw)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", fmt.Sprintf("%s %s", name, err.Error()), http.StatusBadRequest))
		return nil, false
	}
	return &ts, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
