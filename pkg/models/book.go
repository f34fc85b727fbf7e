package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	FormatReflowable = "reflowable"
	FormatFixedPage  = "fixed-page"
)

const (
	ContainerEPUB = "epub"
	ContainerPDF  = "pdf"
	ContainerCBZ  = "cbz"
)

const (
	EnrichmentStatePending  = "pending"
	EnrichmentStateComplete = "complete"
	EnrichmentStateFailed   = "failed"
)

const (
	StorageRemote = "remote"
	StorageLocal  = "local"
)

const UnknownAuthor = "Unknown Author"

// BlobCoverPrefix marks a CoverRef that points at a locally stored blob
// rather than a remote URL.
const BlobCoverPrefix = "blob:"

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           string    `bun:",pk" json:"id"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	UserID       string    `bun:",notnull" json:"user_id,omitempty"`
	Title        string    `bun:",notnull" json:"title"`
	TitleSource  string    `bun:",notnull" json:"title_source"`
	Author       string    `bun:",notnull" json:"author"`
	AuthorSource string    `bun:",notnull" json:"author_source"`
	CoverRef     string    `bun:",notnull" json:"cover_ref"`
	Format       string    `bun:",notnull" json:"format"`
	Container    string    `bun:",notnull" json:"container"`
	Filename     string    `bun:",notnull" json:"filename"`
	ContentType  string    `bun:",notnull" json:"content_type"`
	SizeBytes    int64     `bun:",notnull" json:"size_bytes"`
	ContentHash  string    `bun:",notnull" json:"content_hash"`
	Progress     float64   `bun:",notnull" json:"progress"`

	EnrichmentState string `bun:"-" json:"enrichment_state,omitempty"`
	Storage         string `bun:"-" json:"storage,omitempty"`
}

// CoverBlobKey is the local blob key an extracted cover is stored under.
func CoverBlobKey(bookID string) string {
	return "cover_" + bookID
}

// CoverBlobRef is the CoverRef for a locally stored cover.
func CoverBlobRef(bookID string) string {
	return BlobCoverPrefix + CoverBlobKey(bookID)
}

// LocalCoverKey returns the blob key CoverRef points at, if it points at one.
func (b *Book) LocalCoverKey() (string, bool) {
	if !strings.HasPrefix(b.CoverRef, BlobCoverPrefix) {
		return "", false
	}
	return strings.TrimPrefix(b.CoverRef, BlobCoverPrefix), true
}

// Clone returns a shallow copy, which is a full copy since Book holds no
// references.
func (b *Book) Clone() *Book {
	c := *b
	return &c
}
