package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Blob holds raw bytes in the local store: the original upload under the
// book id and any extracted cover under CoverBlobKey.
type Blob struct {
	bun.BaseModel `bun:"table:blobs,alias:bl"`

	Key       string    `bun:",pk" json:"key"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	MimeType  string    `bun:",notnull" json:"mime_type"`
	SizeBytes int64     `bun:",notnull" json:"size_bytes"`
	Data      []byte    `bun:",notnull" json:"-"`
}
