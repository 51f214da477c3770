package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The UNIQUE constraint on the
// sorted participant pair is what makes get-or-create safe under concurrent
// first contact; the CHECK keeps unread counters from going negative.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id                   UUID PRIMARY KEY,
		participant_low      UUID NOT NULL,
		participant_high     UUID NOT NULL,
		related_job          UUID,
		related_application  UUID,
		status               TEXT NOT NULL DEFAULT 'active',
		last_message_content TEXT,
		last_message_sender  UUID,
		last_message_type    TEXT,
		last_message_at      TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (participant_low < participant_high),
		UNIQUE (participant_low, participant_high)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		user_id         UUID NOT NULL,
		role            TEXT NOT NULL DEFAULT '',
		unread_count    INT  NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
		archived        BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (conversation_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		sender_id       UUID NOT NULL,
		type            TEXT NOT NULL,
		content         TEXT,
		file_url        TEXT,
		file_name       TEXT,
		file_size       BIGINT,
		file_mime       TEXT,
		status          TEXT NOT NULL DEFAULT 'sent',
		reply_to        UUID REFERENCES messages(id),
		edited          BOOLEAN NOT NULL DEFAULT FALSE,
		edited_at       TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
		ON messages (conversation_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS message_reads (
		message_id UUID NOT NULL REFERENCES messages(id),
		user_id    UUID NOT NULL,
		read_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS message_deletions (
		message_id UUID NOT NULL REFERENCES messages(id),
		user_id    UUID NOT NULL,
		PRIMARY KEY (message_id, user_id)
	)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
