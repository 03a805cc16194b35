package chat

import (
	"context"
	"time"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
)

type Sender string

const (
	SenderAttendee Sender = "attendee"
	SenderHost     Sender = "host"
	SenderBot      Sender = "bot"
)

// Message is one chat line as delivered by a source. It is never mutated
// after the source creates it.
type Message struct {
	ID         string
	ChatID     string
	Sender     Sender
	SenderName string
	Text       string
	CreatedAt  time.Time
}

// Outbound delivers a reply into the chat platform.
type Outbound interface {
	SendReply(ctx context.Context, chatID string, text string) error
}

// Repo is the conversation log.
type Repo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, chatID string) ([]Message, error)
}

// Responder computes a reply for a message text.
type Responder interface {
	Reply(ctx context.Context, text string) (responder.Reply, error)
}

// Service handles one inbound message end to end.
type Service interface {
	HandleIncoming(ctx context.Context, msg *Message) (responder.Reply, error)
	// History returns the logged messages and bot replies of a chat, oldest first.
	History(ctx context.Context, chatID string) ([]Message, error)
}
