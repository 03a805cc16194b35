package poller

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
)

// contentNamespace seeds the UUIDv5 ids of messages that carry no
// platform id attribute.
var contentNamespace = uuid.MustParse("5b0e7f1c-3f0a-4f59-9a43-6a0c2f1b8d21")

// Selectors are CSS selectors describing the rendered chat surface.
type Selectors struct {
	Container string // element holding all messages; its HTML is what Scan reads
	Message   string // one node per chat line, relative to Container
	Text      string // text node inside a message; empty means the whole message node
	Sender    string // sender name inside a message; optional
	ID        string // attribute carrying a platform message id; optional
	Input     string // text input for replies
	Submit    string // send button; empty means press Enter in Input
}

// ExtractMessages turns the chat container HTML into messages in document
// order. Nodes with no text are skipped. When a node has no id attribute its
// id is derived from chatID, sender, text and how many identical
// sender/text pairs precede it, so rescans of the same page yield the same ids.
func ExtractMessages(html string, sel Selectors, chatID string) ([]chat.Message, error) {
	if sel.Message == "" {
		return nil, fmt.Errorf("poller: message selector is empty")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse chat html: %w", err)
	}

	var out []chat.Message
	seenPairs := make(map[string]int)

	doc.Find(sel.Message).Each(func(_ int, s *goquery.Selection) {
		text := nodeText(s, sel.Text)
		if text == "" {
			return
		}
		sender := ""
		if sel.Sender != "" {
			sender = nodeText(s, sel.Sender)
		}

		id := ""
		if sel.ID != "" {
			id = strings.TrimSpace(s.AttrOr(sel.ID, ""))
		}
		if id == "" {
			pair := chatID + "\x00" + sender + "\x00" + text
			n := seenPairs[pair]
			seenPairs[pair] = n + 1
			id = uuid.NewSHA1(contentNamespace, []byte(fmt.Sprintf("%s\x00%d", pair, n))).String()
		}

		out = append(out, chat.Message{
			ID:         id,
			ChatID:     chatID,
			Sender:     chat.SenderAttendee,
			SenderName: sender,
			Text:       text,
		})
	})

	return out, nil
}

func nodeText(s *goquery.Selection, selector string) string {
	if selector != "" {
		s = s.Find(selector).First()
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}
