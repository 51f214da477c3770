package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/directory"
	"github.com/worklink/messaging/internal/domain"
	"github.com/worklink/messaging/internal/notify"
	"github.com/worklink/messaging/internal/realtime"
	"github.com/worklink/messaging/internal/repository"
	"github.com/worklink/messaging/pkg/apperrors"
)

var (
	ErrConversationNotFound = apperrors.NotFound("conversation not found")
	ErrMessageNotFound      = apperrors.NotFound("message not found")
	ErrNotParticipant       = apperrors.Forbidden("you are not a participant of this conversation")
	ErrNotMessageSender     = apperrors.Forbidden("only the message sender can perform this action")
	ErrNotEditable          = apperrors.Forbidden("only text messages can be edited")
	ErrSelfConversation     = apperrors.Validation("cannot start a conversation with yourself")
	ErrContentRequired      = apperrors.Validation("content is required for text and system messages")
	ErrFileRequired         = apperrors.Validation("a file is required for file and image messages")
	ErrInvalidMessageType   = apperrors.Validation("unknown message type")
	ErrReplyOtherConv       = apperrors.Validation("reply target belongs to a different conversation")
	ErrUserNotFound         = apperrors.NotFound("user not found")
)

// ConversationService is the transactional core: the sole writer of
// conversations and messages. Durable writes commit first; notification and
// live-transport side effects run after the commit and are absorbed on
// failure, so real-time delivery can never fail a business operation.
type ConversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	dir      directory.Directory
	notifier notify.Notifier
	rt       *realtime.Fanout
	logger   *slog.Logger
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	dir directory.Directory,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		dir:      dir,
		notifier: notify.NopNotifier{},
		logger:   logger,
	}
}

// SetNotifier sets the notification dispatcher (optional dependency).
func (s *ConversationService) SetNotifier(n notify.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// SetTransport sets the live-transport fanout (optional dependency). A nil
// fanout means every publish is a silent no-op.
func (s *ConversationService) SetTransport(rt *realtime.Fanout) {
	s.rt = rt
}

// GetOrCreateConversation finds or lazily creates the single conversation
// for the unordered (userID, otherUserID) pair. Safe under concurrent first
// contact: creation races are resolved by the uniqueness constraint on the
// sorted pair plus a re-read.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, userID, otherUserID uuid.UUID, relatedJob, relatedApplication *uuid.UUID) (*domain.Conversation, error) {
	if userID == otherUserID {
		return nil, ErrSelfConversation
	}

	caller, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	other, err := s.dir.GetUser(ctx, otherUserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.convRepo.GetByPair(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		s.decorate(ctx, conv, userID)
		return conv, nil
	}

	now := time.Now()
	conv = &domain.Conversation{
		ID:                 uuid.New(),
		RelatedJob:         relatedJob,
		RelatedApplication: relatedApplication,
		Status:             domain.ConversationActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	conv.Participants[0] = domain.Participant{UserID: userID, Role: caller.Role}
	conv.Participants[1] = domain.Participant{UserID: otherUserID, Role: other.Role}

	created, err := s.convRepo.Create(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	if !created {
		// Lost the race: the pair now exists, read it back.
		conv, err = s.convRepo.GetByPair(ctx, userID, otherUserID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, apperrors.Internal("conversation vanished after create conflict")
		}
	}

	s.decorate(ctx, conv, userID)
	return conv, nil
}

type SendMessageInput struct {
	Type    domain.MessageType     `json:"type"`
	Content *string                `json:"content,omitempty"`
	File    *domain.FileAttachment `json:"file,omitempty"`
	ReplyTo *uuid.UUID             `json:"reply_to,omitempty"`
}

// SendMessage validates, commits the message plus conversation summary
// updates atomically, then fans out the new-message event and a
// notification to the recipient.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	if err := validateMessageInput(input); err != nil {
		return nil, err
	}
	if input.ReplyTo != nil {
		target, err := s.msgRepo.GetByID(ctx, *input.ReplyTo)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, ErrMessageNotFound
		}
		if target.ConversationID != conversationID {
			return nil, ErrReplyOtherConv
		}
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           input.Type,
		Content:        input.Content,
		File:           input.File,
		Status:         domain.StatusSent,
		ReplyTo:        input.ReplyTo,
		CreatedAt:      time.Now(),
	}

	recipientUnread, err := s.msgRepo.Create(ctx, msg, previewFor(msg))
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	// Post-commit side effects, in commit order, best-effort.
	s.rt.PublishToConversation(ctx, conversationID, realtime.NewMessageEvent(msg))
	s.notifyRecipients(ctx, conv, msg)
	if other := conv.OtherParticipant(senderID); other != nil {
		s.rt.PublishToUser(ctx, other.UserID, realtime.UnreadCountEvent(conversationID, recipientUnread))
	}

	return msg, nil
}

type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasMore  bool `json:"has_more"`
}

type MessagePage struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// GetMessages returns one page in chronological order. The store is queried
// newest-first so "latest N" stays cheap, then the page is reversed.
func (s *ConversationService) GetMessages(ctx context.Context, conversationID, requesterID uuid.UUID, page, pageSize int) (*MessagePage, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	msgs, total, err := s.msgRepo.ListByConversation(ctx, conversationID, requesterID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (store returns DESC).
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	return &MessagePage{
		Messages: msgs,
		Pagination: Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			HasMore:  page*pageSize < total,
		},
	}, nil
}

// MarkConversationAsRead zeroes the requester's unread counter and appends
// read receipts to every message from the other participant. Idempotent.
func (s *ConversationService) MarkConversationAsRead(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	marked, err := s.msgRepo.MarkConversationRead(ctx, conversationID, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("marking conversation read: %w", err)
	}

	if marked > 0 {
		s.rt.PublishToConversation(ctx, conversationID, realtime.MessageReadEvent(conversationID, userID, marked))
	}
	s.rt.PublishToUser(ctx, userID, realtime.UnreadCountEvent(conversationID, 0))

	conv, err = s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, conv, userID)
	return conv, nil
}

// ArchiveConversation hides the conversation from the requester's list
// only; the other participant's view is untouched. Idempotent.
func (s *ConversationService) ArchiveConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.setArchived(ctx, conversationID, userID, true)
}

func (s *ConversationService) UnarchiveConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.setArchived(ctx, conversationID, userID, false)
}

func (s *ConversationService) setArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return s.convRepo.SetArchived(ctx, conversationID, userID, archived)
}

// DeleteMessage is an own-copy delete: the message disappears for the
// sender only and stays visible to the other participant. Only the
// deleter's own user channel hears about it, so their other devices
// converge.
func (s *ConversationService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) (*domain.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageSender
	}

	if err := s.msgRepo.MarkDeletedFor(ctx, messageID, userID); err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	if !msg.DeletedFor(userID) {
		msg.DeletedBy = append(msg.DeletedBy, userID)
	}

	s.rt.PublishToUser(ctx, userID, realtime.MessageDeletedEvent(msg.ConversationID, messageID))

	return msg, nil
}

// EditMessage rewrites a text message's content. Sender-only, text-only.
func (s *ConversationService) EditMessage(ctx context.Context, messageID, userID uuid.UUID, newContent string) (*domain.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageSender
	}
	if msg.Type != domain.MessageText {
		return nil, ErrNotEditable
	}
	if strings.TrimSpace(newContent) == "" {
		return nil, ErrContentRequired
	}

	now := time.Now()
	if err := s.msgRepo.UpdateContent(ctx, messageID, newContent, now); err != nil {
		return nil, fmt.Errorf("editing message: %w", err)
	}
	msg.Content = &newContent
	msg.Edited = true
	msg.EditedAt = &now

	s.rt.PublishToConversation(ctx, msg.ConversationID, realtime.MessageEditedEvent(msg))

	return msg, nil
}

// MarkMessageDelivered promotes a message sent→delivered. Forward-only:
// a message already read stays read.
func (s *ConversationService) MarkMessageDelivered(ctx context.Context, messageID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	return s.msgRepo.MarkDelivered(ctx, messageID)
}

// ListConversations returns the requester's conversations, newest activity
// first, decorated with the other participant's display data.
func (s *ConversationService) ListConversations(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID, includeArchived)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		s.decorate(ctx, &convs[i], userID)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// SearchConversations matches term case-insensitively against the other
// participant's display name or the related-job title, within the
// requester's non-archived conversations.
func (s *ConversationService) SearchConversations(ctx context.Context, userID uuid.UUID, term string) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	matches := []domain.Conversation{}
	for i := range convs {
		conv := &convs[i]
		s.decorate(ctx, conv, userID)
		if needle == "" {
			matches = append(matches, *conv)
			continue
		}
		if strings.Contains(strings.ToLower(conv.OtherUserDisplayName), needle) {
			matches = append(matches, *conv)
			continue
		}
		if conv.RelatedJob != nil {
			if job, err := s.dir.GetJob(ctx, *conv.RelatedJob); err == nil &&
				strings.Contains(strings.ToLower(job.Title), needle) {
				matches = append(matches, *conv)
			}
		}
	}
	return matches, nil
}

func (s *ConversationService) notifyRecipients(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	other := conv.OtherParticipant(msg.SenderID)
	if other == nil {
		return
	}

	title := "New message"
	if sender, err := s.dir.GetUser(ctx, msg.SenderID); err == nil {
		title = "New message from " + sender.DisplayName
	}
	n := notify.Notification{
		Title:                 title,
		Message:               previewFor(msg),
		RelatedConversationID: conv.ID,
	}
	if err := s.notifier.Notify(ctx, other.UserID, n); err != nil {
		s.logger.Warn("notification dispatch failed",
			"recipient_id", other.UserID, "conversation_id", conv.ID, "error", err)
	}
	s.rt.PublishToUser(ctx, other.UserID, realtime.NotificationEvent(n))
}

func (s *ConversationService) decorate(ctx context.Context, conv *domain.Conversation, viewerID uuid.UUID) {
	if conv == nil {
		return
	}
	other := conv.OtherParticipant(viewerID)
	if other == nil {
		return
	}
	conv.OtherUserID = other.UserID
	if u, err := s.dir.GetUser(ctx, other.UserID); err == nil {
		conv.OtherUserDisplayName = u.DisplayName
	}
}

func validateMessageInput(input SendMessageInput) error {
	if !domain.ValidType(input.Type) {
		return ErrInvalidMessageType
	}
	switch input.Type {
	case domain.MessageText, domain.MessageSystem:
		if input.Content == nil || strings.TrimSpace(*input.Content) == "" {
			return ErrContentRequired
		}
	case domain.MessageFile, domain.MessageImage:
		if input.File == nil || input.File.URL == "" {
			return ErrFileRequired
		}
	}
	return nil
}

// previewFor is the last-message cache text: real content for text and
// system messages, a placeholder for attachments.
func previewFor(msg *domain.Message) string {
	switch msg.Type {
	case domain.MessageFile:
		return "Sent a file"
	case domain.MessageImage:
		return "Sent an image"
	default:
		if msg.Content != nil {
			return *msg.Content
		}
		return ""
	}
}
