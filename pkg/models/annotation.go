package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Annotation struct {
	bun.BaseModel `bun:"table:annotations,alias:an"`

	Key       string    `bun:",pk" json:"key"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	BookID    string    `bun:",notnull" json:"book_id"`
	PageKey   string    `bun:",notnull" json:"page_key"`
	Data      string    `bun:",notnull" json:"data"`
}

// AnnotationKey builds the storage key for a page overlay.
func AnnotationKey(bookID, pageKey string) string {
	return AnnotationPrefix(bookID) + pageKey
}

// AnnotationPrefix is the key prefix shared by every overlay of a book.
func AnnotationPrefix(bookID string) string {
	return bookID + "-"
}
