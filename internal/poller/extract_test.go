package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSelectors = Selectors{
	Container: "#chat",
	Message:   ".chat-message",
	Text:      ".message-text",
	Sender:    ".message-sender",
	ID:        "data-id",
	Input:     "#chat-input",
	Submit:    "#send-button",
}

const chatHTML = `
<div id="chat">
  <div class="chat-message" data-id="m1">
    <span class="message-sender">Ann</span>
    <span class="message-text">What's the
      PRICE?</span>
  </div>
  <div class="chat-message">
    <span class="message-sender">Bob</span>
    <span class="message-text">hello there</span>
  </div>
  <div class="chat-message">
    <span class="message-sender">Bob</span>
    <span class="message-text">hello there</span>
  </div>
  <div class="chat-message"><span class="message-sender">Eve</span><span class="message-text">   </span></div>
</div>`

func TestExtractMessages(t *testing.T) {
	msgs, err := ExtractMessages(chatHTML, testSelectors, "room-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "Ann", msgs[0].SenderName)
	assert.Equal(t, "What's the PRICE?", msgs[0].Text)
	assert.Equal(t, "room-1", msgs[0].ChatID)

	assert.Equal(t, "hello there", msgs[1].Text)
	assert.NotEmpty(t, msgs[1].ID)
	// identical lines from the same sender are still distinct messages
	assert.NotEqual(t, msgs[1].ID, msgs[2].ID)
}

func TestExtractMessagesStableIDs(t *testing.T) {
	a, err := ExtractMessages(chatHTML, testSelectors, "room-1")
	require.NoError(t, err)
	b, err := ExtractMessages(chatHTML, testSelectors, "room-1")
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}

	other, err := ExtractMessages(chatHTML, testSelectors, "room-2")
	require.NoError(t, err)
	assert.NotEqual(t, a[1].ID, other[1].ID)
}

func TestExtractMessagesWholeNodeText(t *testing.T) {
	sel := Selectors{Message: "li"}
	msgs, err := ExtractMessages(`<ul><li>is this recorded?</li><li></li></ul>`, sel, "room")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "is this recorded?", msgs[0].Text)
	assert.Empty(t, msgs[0].SenderName)
}

func TestExtractMessagesDriftReturnsNothing(t *testing.T) {
	msgs, err := ExtractMessages(`<div id="chat"><p class="renamed">hi</p></div>`, testSelectors, "room")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestExtractMessagesNeedsSelector(t *testing.T) {
	_, err := ExtractMessages(chatHTML, Selectors{}, "room")
	assert.Error(t, err)
}
