package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/metrics"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/seen"
)

var ErrTooManyScanFailures = errors.New("poller: too many consecutive scan failures")

type Options struct {
	Interval time.Duration
	// SelfName is the display name the bot posts under; its lines are never answered.
	SelfName string
	// SkipBacklog marks messages already visible on the first scan as seen
	// without replying to them.
	SkipBacklog bool
	// MaxScanFailures stops Run after that many consecutive failed scans. 0 means never.
	MaxScanFailures int
	// DriftThreshold is the number of consecutive empty scans, after messages
	// had been visible, that triggers a structural-drift warning. 0 disables it.
	DriftThreshold int
	// Store overrides the session-scoped seen set.
	Store seen.Store
}

type Poller struct {
	open Opener
	svc  chat.Service
	opts Options
}

func New(open Opener, svc chat.Service, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Poller{open: open, svc: svc, opts: opts}
}

// session is the per-Run state. Nothing in it outlives the surface.
type session struct {
	surface    Surface
	store      seen.Store
	sent       map[string]int // reply texts typed but not yet observed back
	primed     bool
	failures   int
	emptyScans int
	hadContent bool
}

// Run opens a surface and polls it until ctx is done or scanning keeps
// failing. The surface is closed on every return path.
func (p *Poller) Run(ctx context.Context) error {
	surface, err := p.open(ctx)
	if err != nil {
		return fmt.Errorf("open chat surface: %w", err)
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			logger.Log.Warn("surface_close_failed", zap.Error(cerr))
		}
	}()

	store := p.opts.Store
	if store == nil {
		store = seen.NewMemory()
	}
	s := &session{
		surface: surface,
		store:   store,
		sent:    make(map[string]int),
		primed:  !p.opts.SkipBacklog,
	}

	logger.Log.Info("poller_started", zap.Duration("interval", p.opts.Interval))

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if err := p.tick(ctx, s); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			logger.Log.Info("poller_stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context, s *session) error {
	msgs, err := s.surface.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.failures++
		metrics.ScanFailures.Inc()
		logger.Log.Warn("scan_failed", zap.Int("consecutive", s.failures), zap.Error(err))
		if p.opts.MaxScanFailures > 0 && s.failures >= p.opts.MaxScanFailures {
			return fmt.Errorf("%w: last error: %v", ErrTooManyScanFailures, err)
		}
		return nil
	}
	s.failures = 0
	p.watchDrift(s, len(msgs))

	if !s.primed {
		for _, m := range msgs {
			if _, err := s.store.MarkNew(ctx, m.ID); err != nil {
				logger.Log.Warn("seen_store_failed", zap.String("message_id", m.ID), zap.Error(err))
			}
		}
		s.primed = true
		logger.Log.Info("backlog_skipped", zap.Int("messages", len(msgs)))
		return nil
	}

	for i := range msgs {
		if ctx.Err() != nil {
			return nil
		}
		p.handle(ctx, s, msgs[i])
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, s *session, msg chat.Message) {
	fresh, err := s.store.MarkNew(ctx, msg.ID)
	if err != nil {
		// skipping is safer than replying again on every scan
		logger.Log.Warn("seen_store_failed", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	if !fresh {
		return
	}

	if p.isOwn(s, msg) {
		return
	}

	metrics.MessagesReceived.WithLabelValues("poll").Inc()

	reply, err := p.svc.HandleIncoming(ctx, &msg)
	if err != nil {
		logger.Log.Error("reply_failed", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	if err := s.surface.Send(ctx, reply.Text); err != nil {
		metrics.SinkFailures.WithLabelValues("surface").Inc()
		logger.Log.Error("surface_send_failed", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	if p.opts.SelfName == "" {
		s.sent[collapse(reply.Text)]++
	}
}

// isOwn reports whether msg was posted by the bot, either by name or because
// it echoes a reply we typed and have not seen come back yet.
func (p *Poller) isOwn(s *session, msg chat.Message) bool {
	if p.opts.SelfName != "" && strings.EqualFold(strings.TrimSpace(msg.SenderName), p.opts.SelfName) {
		return true
	}
	key := collapse(msg.Text)
	if n := s.sent[key]; n > 0 {
		if n == 1 {
			delete(s.sent, key)
		} else {
			s.sent[key] = n - 1
		}
		return true
	}
	return false
}

// collapse normalises whitespace the same way extraction does.
func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (p *Poller) watchDrift(s *session, n int) {
	if n > 0 {
		s.hadContent = true
		s.emptyScans = 0
		return
	}
	if !s.hadContent || p.opts.DriftThreshold <= 0 {
		return
	}
	s.emptyScans++
	if s.emptyScans == p.opts.DriftThreshold {
		logger.Log.Warn("chat_surface_drift",
			zap.Int("empty_scans", s.emptyScans),
			zap.String("hint", "message selector matches nothing; the page layout may have changed"),
		)
	}
}
