package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"codepath-guard/internal/auditlog"
	"codepath-guard/internal/validation"
)

const (
	invalidDataMessage   = "Dados inválidos"
	internalErrorMessage = "Erro interno do servidor"

	// Request bodies larger than this are not worth validating.
	maxBodyBytes = 1 << 20
)

type contextKey struct{ name string }

var sanitizedKey = &contextKey{"sanitized"}

// Sanitized returns the validated, sanitized body installed by Validate,
// or nil when the request did not pass through it.
func Sanitized(ctx context.Context) map[string]any {
	data, _ := ctx.Value(sanitizedKey).(map[string]any)
	return data
}

// Validate binds a named schema to an endpoint. On success the request
// body is replaced with the sanitized re-encoding and the map is also
// available via Sanitized; unknown input fields never reach handlers.
func Validate(registry *validation.Registry, schemaName string, auditor *auditlog.Logger, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			schema, ok := registry.Get(schemaName)
			if !ok {
				// Programmer error: the specific name stays server-side.
				logger.Error("validation schema not registered",
					zap.String("schema", schemaName),
					zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, Response{
					Success: false,
					Message: internalErrorMessage,
				})
				return
			}

			identity := ClientIdentity(r)

			data, err := decodeBody(w, r)
			if err != nil {
				auditor.LogRejection(identity, r.URL.Path,
					[]string{"invalid JSON body"},
					map[string]any{"userAgent": r.UserAgent()})
				writeJSON(w, http.StatusBadRequest, Response{
					Success: false,
					Message: invalidDataMessage,
					Errors:  []string{"corpo da requisição deve ser um JSON válido"},
				})
				return
			}

			result := validation.Validate(data, schema)
			if !result.Valid {
				payload := data
				if payload != nil {
					payload["userAgent"] = r.UserAgent()
				}
				auditor.LogRejection(identity, r.URL.Path, result.Errors, payload)
				writeJSON(w, http.StatusBadRequest, Response{
					Success: false,
					Message: invalidDataMessage,
					Errors:  result.Errors,
				})
				return
			}

			encoded, err := json.Marshal(result.Sanitized)
			if err != nil {
				logger.Error("failed to re-encode sanitized body", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, Response{
					Success: false,
					Message: internalErrorMessage,
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(encoded))
			r.ContentLength = int64(len(encoded))

			ctx := context.WithValue(r.Context(), sanitizedKey, result.Sanitized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decodeBody parses the JSON object body. An empty body validates as an
// empty object so required-field errors surface instead of a parse
// error.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return data, nil
}
