package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/retention-chat/internal/chat"
	"github.com/capitalize-ai/retention-chat/internal/model"
)

func init() {
	color.NoColor = true
}

func TestRender_PrintsOnlyNewMessages(t *testing.T) {
	var buf bytes.Buffer
	ui := newTerminal(&buf)

	st := model.ChatState{
		Step: model.StepChatting,
		Conversation: &model.Conversation{Messages: []model.Message{
			{Content: "Hi", Sender: model.SenderAI},
		}},
	}
	ui.render(st)
	st.Conversation.Messages = append(st.Conversation.Messages,
		model.Message{Content: "too pricey", Sender: model.SenderUser, Pending: true},
	)
	ui.render(st)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "agent: Hi"))
	assert.Contains(t, out, "you: too pricey (not delivered)")
}

func TestRender_OfferCardOnce(t *testing.T) {
	var buf bytes.Buffer
	ui := newTerminal(&buf)

	st := model.ChatState{
		Step:         model.StepOfferPresented,
		Conversation: &model.Conversation{},
		CurrentOffer: &model.RetentionOffer{
			ID:        "o1",
			Title:     "50% Off for 3 Months",
			Savings:   model.Savings{Monthly: 15, Total: 45, Currency: "USD"},
			ExpiresAt: time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
			Terms:     []string{"Cannot be combined with other offers"},
		},
	}
	ui.render(st)
	ui.render(st)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "50% Off for 3 Months"))
	assert.Contains(t, out, "Save $15.00/month, $45.00 in total")
	assert.Contains(t, out, "- Cannot be combined with other offers")

	ui.reset()
	ui.render(st)
	assert.Equal(t, 2, strings.Count(buf.String(), "50% Off for 3 Months"))
}

func TestAskReason(t *testing.T) {
	var buf bytes.Buffer
	ui := newTerminal(&buf)

	choice, ok := ui.askReason(bufio.NewScanner(strings.NewReader("9\n\nabc\n5\n")))
	require.True(t, ok)
	assert.Equal(t, model.ReasonOther, choice.value)
	assert.True(t, choice.requiresText)
	assert.Equal(t, 2, strings.Count(buf.String(), "Pick a number"))

	_, ok = ui.askReason(bufio.NewScanner(strings.NewReader("")))
	assert.False(t, ok)
}

func TestInputHint(t *testing.T) {
	assert.True(t, isInputError(chat.ErrBusy))
	assert.False(t, isInputError(nil))
	assert.Contains(t, inputHint(chat.ErrConversationCompleted), "/new")
	assert.Contains(t, inputHint(chat.ErrNoOffer), "no offer")
}
