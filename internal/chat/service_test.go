package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/seen"
)

type memRepo struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *memRepo) SaveMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *memRepo) GetHistory(_ context.Context, chatID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeOutbound struct {
	mu    sync.Mutex
	sent  []string
	err   error
	chats []string
}

func (o *fakeOutbound) SendReply(_ context.Context, chatID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chats = append(o.chats, chatID)
	o.sent = append(o.sent, text)
	return o.err
}

type failingResponder struct{ err error }

func (f failingResponder) Reply(context.Context, string) (responder.Reply, error) {
	return responder.Reply{}, f.err
}

func newResponder(t *testing.T) *responder.Responder {
	t.Helper()
	r, err := responder.New(responder.DefaultRules(), nil)
	require.NoError(t, err)
	return r
}

func TestHandleIncomingRuleReply(t *testing.T) {
	repo := &memRepo{}
	out := &fakeOutbound{}
	svc := NewService(repo, newResponder(t), out, nil)

	reply, err := svc.HandleIncoming(context.Background(), &Message{
		ChatID:     "room-1",
		Sender:     SenderAttendee,
		SenderName: "Ann",
		Text:       "What's the PRICE?",
	})
	require.NoError(t, err)

	assert.Equal(t, "You can check our pricing on our website at www.example.com", reply.Text)
	assert.Equal(t, []string{reply.Text}, out.sent)
	assert.Equal(t, []string{"room-1"}, out.chats)

	history, _ := repo.GetHistory(context.Background(), "room-1")
	require.Len(t, history, 2)
	assert.Equal(t, SenderAttendee, history[0].Sender)
	assert.NotEmpty(t, history[0].ID)
	assert.Equal(t, SenderBot, history[1].Sender)
	assert.Equal(t, history[0].ID+":reply", history[1].ID)
}

func TestHandleIncomingDuplicate(t *testing.T) {
	out := &fakeOutbound{}
	svc := NewService(nil, newResponder(t), out, seen.NewMemory())

	msg := &Message{ID: "platform-42", ChatID: "room-1", Text: "hello there"}
	_, err := svc.HandleIncoming(context.Background(), msg)
	require.NoError(t, err)

	_, err = svc.HandleIncoming(context.Background(), msg)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, out.sent, 1)
}

func TestHandleIncomingEmptyText(t *testing.T) {
	svc := NewService(nil, newResponder(t), nil, nil)

	_, err := svc.HandleIncoming(context.Background(), &Message{ChatID: "room-1", Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHandleIncomingRepoFailureIsNotFatal(t *testing.T) {
	repo := &memRepo{err: errors.New("db down")}
	svc := NewService(repo, newResponder(t), nil, nil)

	reply, err := svc.HandleIncoming(context.Background(), &Message{ChatID: "room-1", Text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, responder.SourceDefault, reply.Source)
}

func TestHandleIncomingOutboundFailureStillReplies(t *testing.T) {
	out := &fakeOutbound{err: errors.New("platform down")}
	svc := NewService(nil, newResponder(t), out, nil)

	reply, err := svc.HandleIncoming(context.Background(), &Message{ChatID: "room-1", Text: "price"})
	require.NoError(t, err)
	assert.Equal(t, responder.SourceRule, reply.Source)
}

func TestHandleIncomingResponderError(t *testing.T) {
	out := &fakeOutbound{}
	svc := NewService(nil, failingResponder{err: responder.ErrGeneration}, out, nil)

	_, err := svc.HandleIncoming(context.Background(), &Message{ChatID: "room-1", Text: "hi"})
	assert.ErrorIs(t, err, responder.ErrGeneration)
	assert.Empty(t, out.sent)
}
