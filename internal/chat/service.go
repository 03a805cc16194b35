package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/metrics"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/seen"
)

var (
	ErrDuplicate = errors.New("chat: duplicate message")
	ErrEmptyText = errors.New("chat: empty message text")
)

type service struct {
	repo      Repo
	responder Responder
	outbound  Outbound
	seen      seen.Store
	seq       *Sequencer
}

// NewService wires the pipeline. outbound and seenStore are optional: without
// an outbound the reply is only returned to the caller, without a seen store
// platform message ids are not deduplicated.
func NewService(repo Repo, resp Responder, outbound Outbound, seenStore seen.Store) Service {
	if repo == nil {
		repo = NopRepo{}
	}
	return &service{
		repo:      repo,
		responder: resp,
		outbound:  outbound,
		seen:      seenStore,
		seq:       NewSequencer(),
	}
}

// HandleIncoming processes messages from one sender strictly in arrival
// order; different senders are handled concurrently.
func (s *service) HandleIncoming(ctx context.Context, msg *Message) (responder.Reply, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return responder.Reply{}, ErrEmptyText
	}

	// anonymous senders share one queue per chat
	key := msg.ChatID + "/" + msg.SenderName

	var reply responder.Reply
	err := s.seq.Do(ctx, key, func() error {
		var err error
		reply, err = s.handle(ctx, msg)
		return err
	})
	return reply, err
}

func (s *service) History(ctx context.Context, chatID string) ([]Message, error) {
	msgs, err := s.repo.GetHistory(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", chatID, err)
	}
	return msgs, nil
}

func (s *service) handle(ctx context.Context, in *Message) (responder.Reply, error) {
	msg := *in

	marked := false
	if msg.ID != "" && s.seen != nil {
		fresh, err := s.seen.MarkNew(ctx, msg.ID)
		switch {
		case err != nil:
			// a broken seen store must not silence the bot
			logger.Log.Warn("seen_store_failed", zap.String("message_id", msg.ID), zap.Error(err))
		case !fresh:
			return responder.Reply{}, ErrDuplicate
		default:
			marked = true
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	logger.Log.Info("message_received",
		zap.String("chat_id", msg.ChatID),
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.SenderName),
		zap.String("text", msg.Text),
	)

	if err := s.repo.SaveMessage(ctx, &msg); err != nil {
		logger.Log.Warn("save_message_failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	reply, err := s.responder.Reply(ctx, msg.Text)
	if err != nil {
		if marked {
			s.forget(ctx, msg.ID)
		}
		return responder.Reply{}, fmt.Errorf("reply to %s: %w", msg.ID, err)
	}

	logger.Log.Info("reply_computed",
		zap.String("message_id", msg.ID),
		zap.String("source", string(reply.Source)),
		zap.String("keyword", reply.Keyword),
	)

	if err := s.repo.SaveMessage(ctx, &Message{
		ID:        msg.ID + ":reply",
		ChatID:    msg.ChatID,
		Sender:    SenderBot,
		Text:      reply.Text,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		logger.Log.Warn("save_reply_failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	if s.outbound != nil {
		if err := s.outbound.SendReply(ctx, msg.ChatID, reply.Text); err != nil {
			metrics.SinkFailures.WithLabelValues("outbound").Inc()
			logger.Log.Error("outbound_send_failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
		}
	}

	return reply, nil
}

// forget releases a platform id whose message got no reply, so a retry of
// the same delivery is answered instead of rejected as a duplicate.
func (s *service) forget(ctx context.Context, id string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.seen.Forget(fctx, id); err != nil {
		logger.Log.Warn("seen_forget_failed", zap.String("message_id", id), zap.Error(err))
	}
}
