package database

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Schema is the DDL establishing the event store, in execution order. Every
// statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
	id BYTEA PRIMARY KEY NOT NULL,
	pubkey BYTEA NOT NULL,
	created_at BIGINT NOT NULL,
	kind BIGINT NOT NULL,
	payload BYTEA NOT NULL,
	deleted BOOLEAN NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS event_tags (
	tag TEXT NOT NULL,
	tag_value TEXT NOT NULL,
	event_id BYTEA NOT NULL
		REFERENCES events (id)
		ON DELETE CASCADE
		ON UPDATE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS event_pubkey ON events (pubkey)`,
	`CREATE INDEX IF NOT EXISTS event_date ON events (created_at)`,
	`CREATE INDEX IF NOT EXISTS event_kind ON events (kind)`,
	`CREATE INDEX IF NOT EXISTS event_deleted ON events (deleted)`,
	`CREATE INDEX IF NOT EXISTS event_tags_tag ON event_tags (tag, tag_value, event_id)`,
}

// Migrate establishes the schema. It is safe to run on every startup; the
// first failing statement aborts and is returned without retrying.
func Migrate(ctx context.Context, db *gorm.DB) error {
	for i, stmt := range Schema {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return errors.Wrapf(err, "failed to run schema statement %d", i+1)
		}
	}

	log.Debug().Int("statements", len(Schema)).Msg("Schema is up to date")
	return nil
}
