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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	low, high := domain.SortedPair(conv.Participants[0].UserID, conv.Participants[1].UserID)

	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, participant_low, participant_high, related_job, related_application, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (participant_low, participant_high) DO NOTHING`,
		conv.ID, low, high, conv.RelatedJob, conv.RelatedApplication, conv.Status, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Another writer created the pair first.
		return false, nil
	}

	for _, p := range conv.Participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, unread_count, archived)
			VALUES ($1, $2, $3, 0, FALSE)`,
			conv.ID, p.UserID, p.Role,
		); err != nil {
			return false, err
		}
	}

	return true, tx.Commit(ctx)
}

const conversationColumns = `
	id, participant_low, participant_high, related_job, related_application, status,
	last_message_content, last_message_sender, last_message_type, last_message_at,
	created_at, updated_at`

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+conversationColumns+` FROM conversations WHERE id = $1`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*domain.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	low, high := domain.SortedPair(a, b)
	row := r.pool.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE participant_low = $1 AND participant_high = $2`, low, high)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*domain.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.Conversation, error) {
	query := `
		SELECT` + conversationColumns + `
		FROM conversations c
		WHERE EXISTS (
			SELECT 1 FROM conversation_participants p
			WHERE p.conversation_id = c.id AND p.user_id = $1`
	if !includeArchived {
		query += ` AND NOT p.archived`
	}
	query += `)
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, convs); err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, len(convs))
	for i, c := range convs {
		out[i] = *c
	}
	return out, nil
}

func (r *ConversationRepo) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants SET archived = $3
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID, archived,
	)
	return err
}

func (r *ConversationRepo) loadParticipants(ctx context.Context, convs []*domain.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Conversation, len(convs))
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, user_id, role, unread_count, archived
		FROM conversation_participants
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, user_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]int, len(convs))
	for rows.Next() {
		var convID uuid.UUID
		var p domain.Participant
		if err := rows.Scan(&convID, &p.UserID, &p.Role, &p.UnreadCount, &p.Archived); err != nil {
			return err
		}
		conv := byID[convID]
		if conv == nil {
			continue
		}
		i := seen[convID]
		if i < len(conv.Participants) {
			conv.Participants[i] = p
		}
		seen[convID] = i + 1
	}
	return rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	var low, high uuid.UUID
	var lmContent, lmType *string
	var lmSender *uuid.UUID
	var lmAt *time.Time

	err := row.Scan(
		&conv.ID, &low, &high, &conv.RelatedJob, &conv.RelatedApplication, &conv.Status,
		&lmContent, &lmSender, &lmType, &lmAt,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lmContent != nil && lmSender != nil && lmType != nil && lmAt != nil {
		conv.LastMessage = &domain.LastMessage{
			Content:   *lmContent,
			SenderID:  *lmSender,
			Type:      domain.MessageType(*lmType),
			Timestamp: *lmAt,
		}
	}
	return &conv, nil
}
