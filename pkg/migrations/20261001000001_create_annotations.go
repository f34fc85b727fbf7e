package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// Keys are "<bookId>-<pageKey>" and are scanned by prefix, so there is
		// no foreign key to books: overlays may outlive a remote-only row.
		_, err := db.Exec(`
			CREATE TABLE annotations (
				key TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id TEXT NOT NULL,
				page_key TEXT NOT NULL,
				data TEXT NOT NULL
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS annotations`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
