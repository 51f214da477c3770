package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/worklink/messaging/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message, lastMessagePreview string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var fileURL, fileName, fileMime *string
	var fileSize *int64
	if msg.File != nil {
		fileURL, fileName, fileMime = &msg.File.URL, &msg.File.Name, &msg.File.MimeType
		fileSize = &msg.File.Size
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, type, content,
			file_url, file_name, file_size, file_mime, status, reply_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content,
		fileURL, fileName, fileSize, fileMime, msg.Status, msg.ReplyTo, msg.CreatedAt,
	); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_content = $2, last_message_sender = $3,
			last_message_type = $4, last_message_at = $5, updated_at = $5
		WHERE id = $1`,
		msg.ConversationID, lastMessagePreview, msg.SenderID, msg.Type, msg.CreatedAt,
	); err != nil {
		return 0, err
	}

	// In-place increment: a racing mark-as-read can never make this lose
	// an update, whichever commits second sees the other's write. The
	// RETURNING value is what live unread projections publish.
	var recipientUnread int
	if err := tx.QueryRow(ctx, `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id <> $2
		RETURNING unread_count`,
		msg.ConversationID, msg.SenderID,
	).Scan(&recipientUnread); err != nil {
		return 0, err
	}

	return recipientUnread, tx.Commit(ctx)
}

const messageColumns = `
	id, conversation_id, sender_id, type, content,
	file_url, file_name, file_size, file_mime,
	status, reply_to, edited, edited_at, created_at`

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadReceipts(ctx, []*domain.Message{msg}); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM message_deletions WHERE message_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		msg.DeletedBy = append(msg.DeletedBy, userID)
	}
	return msg, rows.Err()
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID, viewerID uuid.UUID, limit, offset int) ([]domain.Message, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages m
		WHERE m.conversation_id = $1
			AND NOT EXISTS (
				SELECT 1 FROM message_deletions d
				WHERE d.message_id = m.id AND d.user_id = $2
			)`,
		conversationID, viewerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT`+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = $1
			AND NOT EXISTS (
				SELECT 1 FROM message_deletions d
				WHERE d.message_id = m.id AND d.user_id = $2
			)
		ORDER BY m.created_at DESC
		LIMIT $3 OFFSET $4`,
		conversationID, viewerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadReceipts(ctx, msgs); err != nil {
		return nil, 0, err
	}

	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out, total, nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE conversation_participants SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, readerID,
	); err != nil {
		return 0, err
	}

	// ON CONFLICT makes repeat calls a no-op: at most one receipt per
	// user per message.
	tag, err := tx.Exec(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, $2, $3 FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, readerID, at,
	)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE messages SET status = $3
		WHERE conversation_id = $1 AND sender_id <> $2 AND status <> $3`,
		conversationID, readerID, domain.StatusRead,
	); err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), tx.Commit(ctx)
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID uuid.UUID) error {
	// Forward-only: never demotes a message already marked read.
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET status = $2 WHERE id = $1 AND status = $3`,
		messageID, domain.StatusDelivered, domain.StatusSent,
	)
	return err
}

func (r *MessageRepo) UpdateContent(ctx context.Context, messageID uuid.UUID, content string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET content = $2, edited = TRUE, edited_at = $3 WHERE id = $1`,
		messageID, content, at,
	)
	return err
}

func (r *MessageRepo) MarkDeletedFor(ctx context.Context, messageID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_deletions (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID,
	)
	return err
}

func (r *MessageRepo) loadReceipts(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Message, len(msgs))
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT message_id, user_id, read_at
		FROM message_reads
		WHERE message_id = ANY($1)
		ORDER BY read_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var msgID uuid.UUID
		var read domain.MessageRead
		if err := rows.Scan(&msgID, &read.UserID, &read.ReadAt); err != nil {
			return err
		}
		if m := byID[msgID]; m != nil {
			m.ReadBy = append(m.ReadBy, read)
		}
	}
	return rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var fileURL, fileName, fileMime *string
	var fileSize *int64

	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Type, &msg.Content,
		&fileURL, &fileName, &fileSize, &fileMime,
		&msg.Status, &msg.ReplyTo, &msg.Edited, &msg.EditedAt, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fileURL != nil {
		msg.File = &domain.FileAttachment{URL: *fileURL}
		if fileName != nil {
			msg.File.Name = *fileName
		}
		if fileSize != nil {
			msg.File.Size = *fileSize
		}
		if fileMime != nil {
			msg.File.MimeType = *fileMime
		}
	}
	return &msg, nil
}
