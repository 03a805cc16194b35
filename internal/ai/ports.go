package ai

import (
	"context"
	"fmt"
)

// Completer is the external text-generation capability. It knows nothing
// about chats or rules: prompt in, one candidate out.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// PromptTemplate wraps an attendee message into the fixed instruction sent
// to the completion service.
const PromptTemplate = `You are a friendly assistant for a live webinar host.
Reply politely and briefly (one or two sentences) to this attendee chat message.
If you do not know the answer, say the host will follow up.

Message: %q`

func BuildPrompt(text string) string {
	return fmt.Sprintf(PromptTemplate, text)
}
