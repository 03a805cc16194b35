package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
)

// fakeSurface replays scripted scans. Once the script is exhausted it calls
// done and returns empty scans.
type fakeSurface struct {
	mu      sync.Mutex
	scans   [][]chat.Message
	errs    []error
	i       int
	done    func()
	sent    []string
	sendErr error
	closed  int
}

func (f *fakeSurface) Scan(context.Context) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.i >= len(f.scans) {
		if f.done != nil {
			f.done()
		}
		return nil, nil
	}
	i := f.i
	f.i++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.scans[i], err
}

func (f *fakeSurface) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func msg(id, sender, text string) chat.Message {
	return chat.Message{ID: id, ChatID: "room", Sender: chat.SenderAttendee, SenderName: sender, Text: text}
}

func newService(t *testing.T) chat.Service {
	t.Helper()
	r, err := responder.New(responder.DefaultRules(), nil)
	require.NoError(t, err)
	return chat.NewService(nil, r, nil, nil)
}

func run(t *testing.T, f *fakeSurface, opts Options) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if f.done == nil {
		f.done = cancel
	}
	opts.Interval = time.Millisecond
	p := New(func(context.Context) (Surface, error) { return f, nil }, newService(t), opts)
	return p.Run(ctx)
}

const (
	priceReply   = "You can check our pricing on our website at www.example.com"
	defaultReply = "Thanks for your message! We'll get back to you shortly."
)

func TestRunSkipsBacklogAndRepliesOnce(t *testing.T) {
	backlog := []chat.Message{msg("1", "ann", "price?")}
	f := &fakeSurface{scans: [][]chat.Message{
		backlog,
		append(backlog, msg("2", "bob", "hello there")),
		append(backlog, msg("2", "bob", "hello there"), msg("3", "cat", "PRICE please")),
		append(backlog, msg("2", "bob", "hello there"), msg("3", "cat", "PRICE please")),
	}}

	require.NoError(t, run(t, f, Options{SkipBacklog: true}))

	assert.Equal(t, []string{defaultReply, priceReply}, f.sent)
	assert.Equal(t, 1, f.closed)
}

func TestRunRepliesToBacklogWhenAsked(t *testing.T) {
	f := &fakeSurface{scans: [][]chat.Message{{msg("1", "ann", "price?")}}}

	require.NoError(t, run(t, f, Options{SkipBacklog: false}))
	assert.Equal(t, []string{priceReply}, f.sent)
}

func TestRunIgnoresOwnMessagesByName(t *testing.T) {
	f := &fakeSurface{scans: [][]chat.Message{
		nil,
		{msg("1", "Host Bot", "hello there"), msg("2", "ann", "hi")},
	}}

	require.NoError(t, run(t, f, Options{SkipBacklog: true, SelfName: "host bot"}))
	assert.Equal(t, []string{defaultReply}, f.sent)
}

func TestRunIgnoresEchoOfOwnReply(t *testing.T) {
	f := &fakeSurface{scans: [][]chat.Message{
		nil,
		{msg("1", "ann", "hi")},
		// the bot's reply shows up in the chat with no usable sender name
		{msg("1", "ann", "hi"), msg("2", "", defaultReply)},
		{msg("1", "ann", "hi"), msg("2", "", defaultReply)},
	}}

	require.NoError(t, run(t, f, Options{SkipBacklog: true}))
	assert.Equal(t, []string{defaultReply}, f.sent)
}

func TestRunClosesSurfaceOnScanFailures(t *testing.T) {
	boom := errors.New("selector not found")
	f := &fakeSurface{
		scans: [][]chat.Message{nil, nil, nil},
		errs:  []error{boom, boom, boom},
	}

	err := run(t, f, Options{MaxScanFailures: 3})
	assert.ErrorIs(t, err, ErrTooManyScanFailures)
	assert.Equal(t, 1, f.closed)
}

func TestRunRecoversFromSingleScanFailure(t *testing.T) {
	boom := errors.New("flaky")
	f := &fakeSurface{
		scans: [][]chat.Message{nil, nil, {msg("1", "ann", "price")}},
		errs:  []error{nil, boom},
	}

	require.NoError(t, run(t, f, Options{SkipBacklog: true, MaxScanFailures: 2}))
	assert.Equal(t, []string{priceReply}, f.sent)
}

func TestRunSendFailureKeepsGoing(t *testing.T) {
	f := &fakeSurface{
		scans:   [][]chat.Message{nil, {msg("1", "ann", "price")}, {msg("1", "ann", "price")}},
		sendErr: errors.New("input detached"),
	}

	require.NoError(t, run(t, f, Options{SkipBacklog: true}))
	assert.Empty(t, f.sent)
	assert.Equal(t, 1, f.closed)
}

func TestRunOpenFailure(t *testing.T) {
	p := New(func(context.Context) (Surface, error) { return nil, errors.New("no chrome") }, newService(t), Options{})

	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "no chrome")
}

func TestRunWarnsOnDrift(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	f := &fakeSurface{scans: [][]chat.Message{
		{msg("1", "ann", "hi")},
		nil, nil, nil,
	}}

	require.NoError(t, run(t, f, Options{SkipBacklog: true, DriftThreshold: 3}))
	assert.Equal(t, 1, logs.FilterMessage("chat_surface_drift").Len())
}
