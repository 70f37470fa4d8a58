package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey stores one captured response per request fingerprint. The
// unique index on Fingerprint is the sole dedup mechanism: concurrent losers
// hit the constraint and their insert is discarded.
type IdempotencyKey struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Fingerprint    string    `gorm:"column:fingerprint;uniqueIndex;not null" json:"fingerprint"`
	ResponseStatus int       `gorm:"column:response_status;not null" json:"response_status"`
	ResponseBody   []byte    `gorm:"column:response_body" json:"response_body"`
	ContentType    string    `gorm:"column:content_type" json:"content_type"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
