package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

const defaultTTL = 24 * time.Hour

// StoredResponse is a previously captured response, replayed verbatim for a
// repeated request carrying the same idempotency key.
type StoredResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// Guard deduplicates mutating requests by client-supplied idempotency key.
// Lookup failures fail open: a broken guard must never block order intake.
type Guard struct {
	store Store
	ttl   time.Duration
	logg  *logger.Logger
	now   func() time.Time
}

type GuardParams struct {
	Store  Store
	Logger *logger.Logger
	TTL    time.Duration
	Now    func() time.Time
}

func NewGuard(params GuardParams) (*Guard, error) {
	if params.Store == nil {
		return nil, errors.New("idempotency guard requires a store")
	}
	if params.Logger == nil {
		return nil, errors.New("idempotency guard requires a logger")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Guard{store: params.Store, ttl: ttl, logg: params.Logger, now: now}, nil
}

// Lookup returns the stored response for the key, if a live record exists.
// Records older than the TTL are treated as absent; the retention job prunes
// them later.
func (g *Guard) Lookup(ctx context.Context, key string) (*StoredResponse, bool) {
	record, err := g.store.Find(ctx, Fingerprint(key))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			lctx := g.logg.WithField(ctx, "error", err.Error())
			g.logg.Warn(lctx, "idempotency lookup failed, executing request")
		}
		return nil, false
	}
	if g.now().Sub(record.CreatedAt) > g.ttl {
		return nil, false
	}
	return &StoredResponse{
		Status:      record.ResponseStatus,
		Body:        record.ResponseBody,
		ContentType: record.ContentType,
	}, true
}

// Persist stores the captured response under the key's fingerprint. When a
// concurrent request already saved a record for the same fingerprint the
// insert is silently discarded.
func (g *Guard) Persist(ctx context.Context, key string, response StoredResponse) {
	record := &models.IdempotencyKey{
		ID:             uuid.New(),
		Fingerprint:    Fingerprint(key),
		ResponseStatus: response.Status,
		ResponseBody:   response.Body,
		ContentType:    response.ContentType,
		CreatedAt:      g.now(),
	}
	inserted, err := g.store.Save(ctx, record)
	if err != nil {
		g.logg.Error(ctx, "persisting idempotency record failed", err)
		return
	}
	if !inserted {
		lctx := g.logg.WithField(ctx, "fingerprint", record.Fingerprint)
		g.logg.Info(lctx, "idempotency record already present, keeping first writer")
	}
}
