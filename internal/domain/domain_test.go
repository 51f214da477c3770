package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSortedPairIsOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	l1, h1 := SortedPair(a, b)
	l2, h2 := SortedPair(b, a)

	assert.Equal(t, l1, l2)
	assert.Equal(t, h1, h2)
	assert.True(t, l1.String() < h1.String())
}

func TestConversationParticipantHelpers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	conv := &Conversation{}
	conv.Participants[0] = Participant{UserID: a, Role: "candidate"}
	conv.Participants[1] = Participant{UserID: b, Role: "employer", Archived: true}

	assert.True(t, conv.HasParticipant(a))
	assert.False(t, conv.HasParticipant(uuid.New()))

	other := conv.OtherParticipant(a)
	assert.Equal(t, b, other.UserID)
	assert.Nil(t, conv.OtherParticipant(uuid.New()), "outsiders have no counterparty")

	assert.True(t, conv.ArchivedBy(b))
	assert.False(t, conv.ArchivedBy(a))
}

func TestMessageEditable(t *testing.T) {
	sender := uuid.New()
	m := &Message{SenderID: sender, Type: MessageText}
	assert.True(t, m.Editable(sender))
	assert.False(t, m.Editable(uuid.New()))

	m.Type = MessageImage
	assert.False(t, m.Editable(sender), "attachments are never editable")
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType(MessageText))
	assert.True(t, ValidType(MessageSystem))
	assert.False(t, ValidType(MessageType("voice")))
}
