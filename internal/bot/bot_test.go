package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luckfunc/stockbot/internal/models"
	"github.com/luckfunc/stockbot/pkg/logger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		group   bool
		content string
		event   models.EventKind
		text    string
	}{
		{"friend chat", false, "quote $AAPL", models.EventDirectMessage, "quote $AAPL"},
		{"leading mention", true, "@stockbot quote $AAPL", models.EventDirectMention, "quote $AAPL"},
		{"leading mention with space", true, "@stockbot\u2005help", models.EventDirectMention, "help"},
		{"inline mention", true, "ask @stockbot about $TSLA", models.EventMention, "ask @stockbot about $TSLA"},
		{"group chatter", true, "anyone holding $TSLA?", models.EventAmbient, "anyone holding $TSLA?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, text := classify(tt.group, tt.content, "stockbot")
			assert.Equal(t, tt.event, event)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestClassifyBeforeLogin(t *testing.T) {
	event, text := classify(true, "@stockbot quote $AAPL", "")
	assert.Equal(t, models.EventAmbient, event)
	assert.Equal(t, "@stockbot quote $AAPL", text)
}

func TestSendBeforeLogin(t *testing.T) {
	b := &Bot{log: logger.Nop()}
	err := b.SendDirect(context.Background(), "U1", models.TextResponse("hi"))
	assert.Error(t, err)

	err = b.Reply(context.Background(), &models.Message{ID: "1"}, models.TextResponse("hi"))
	assert.Error(t, err)
}

func TestSendDirectHonorsCancelledContext(t *testing.T) {
	b := &Bot{log: logger.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.SendDirect(ctx, "U1", models.TextResponse("hi"))
	assert.ErrorIs(t, err, context.Canceled)
}
