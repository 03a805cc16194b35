package poller

import (
	"context"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
)

// Surface is an open session on a rendered chat: it can list what is
// currently visible and type a reply.
type Surface interface {
	Scan(ctx context.Context) ([]chat.Message, error)
	Send(ctx context.Context, text string) error
	Close() error
}

// Opener acquires a Surface session. The caller owns the result and must
// Close it.
type Opener func(ctx context.Context) (Surface, error)
