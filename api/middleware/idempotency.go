package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/entrega-app/entrega-backend/api/responses"
	"github.com/entrega-app/entrega-backend/internal/idempotency"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Idempotency deduplicates the submission endpoint it wraps. A stored
// response is replayed verbatim; otherwise the handler runs and its response
// is captured and persisted. Two concurrent first submissions may both
// execute: uniqueness is checked only at the persistence step, where the
// race loser's record is discarded while its own response still goes out.
func Idempotency(guard *idempotency.Guard, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			key := scopedKey(r, clientKey)
			if stored, found := guard.Lookup(r.Context(), key); found {
				writeStoredResponse(w, stored)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Server errors are transient; recording them would pin the
			// failure for every retry with the same key.
			if rec.capturedStatus() >= http.StatusInternalServerError {
				return
			}

			guard.Persist(r.Context(), key, idempotency.StoredResponse{
				Status:      rec.capturedStatus(),
				Body:        rec.body.Bytes(),
				ContentType: rec.Header().Get("Content-Type"),
			})
		})
	}
}

// scopedKey namespaces the client key by actor and route so one user's key
// can never replay another user's response.
func scopedKey(r *http.Request, clientKey string) string {
	actorID := ""
	if actor, ok := ActorFromContext(r.Context()); ok {
		actorID = actor.ID.String()
	}
	return strings.Join([]string{actorID, r.Method, r.URL.Path, clientKey}, "|")
}

func writeStoredResponse(w http.ResponseWriter, stored *idempotency.StoredResponse) {
	if stored == nil {
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) capturedStatus() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
