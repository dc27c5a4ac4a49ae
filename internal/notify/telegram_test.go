package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []tgbotapi.MessageConfig
	failFor map[int64]error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if err, bad := f.failFor[msg.ChatID]; bad {
		return tgbotapi.Message{}, err
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestNotify(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifierWithSender(sender, nil, nil)

	require.NoError(t, n.Notify(context.Background(), 42, "Booking received", "09:00-10:30"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Booking received")
	assert.Contains(t, sender.sent[0].Text, "09:00-10:30")
}

func TestNotify_ZeroChatIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifierWithSender(sender, nil, nil)

	require.NoError(t, n.Notify(context.Background(), 0, "s", "b"))
	assert.Empty(t, sender.sent)
}

func TestNotifyAdmins_PartialFailure(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]error{2: errors.New("blocked")}}
	n := NewTelegramNotifierWithSender(sender, []int64{1, 2, 3}, nil)

	err := n.NotifyAdmins(context.Background(), "s", "b")
	assert.Error(t, err)
	// остальные чаты всё равно получают сообщение
	assert.Len(t, sender.sent, 2)
}
