package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolo-save/kolo/internal/logging"
)

func TestKafkaNotifierPublishesKeyedJSON(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var msg Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return err
		}
		if msg.Kind != KindInsufficientFunds || msg.UserID != "user-1" || msg.OccurredAt.IsZero() {
			return errors.New("unexpected payload")
		}
		return nil
	})

	n := NewKafkaNotifier(producer, "kolo.notifications")
	err := n.Send(context.Background(), Message{Kind: KindInsufficientFunds, UserID: "user-1", Body: "top up"})
	require.NoError(t, err)
	require.NoError(t, n.Close())
}

func TestKafkaNotifierSurfacesBrokerError(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifier(producer, "kolo.notifications")
	err := n.Send(context.Background(), Message{Kind: KindDailySaving, UserID: "user-1"})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestLoggerNotifierWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info", "json"))
	require.NoError(t, n.Send(context.Background(), Message{
		Kind:       KindDailySaving,
		UserID:     "user-1",
		Attributes: map[string]string{"amount": "27.40"},
	}))
	assert.Contains(t, buf.String(), `"kind":"daily_saving_succeeded"`)
	assert.Contains(t, buf.String(), `"amount":"27.40"`)
}

type countingSender struct{ sent int }

func (s *countingSender) SendCode(context.Context, string, string) error {
	s.sent++
	return nil
}

func TestThrottledSMSSenderRespectsContext(t *testing.T) {
	next := &countingSender{}
	s := NewThrottledSMSSender(next, 1)

	require.NoError(t, s.SendCode(context.Background(), "+15550001111", "123456"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.SendCode(ctx, "+15550001111", "654321")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "sms throttled"))
	assert.Equal(t, 1, next.sent)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+********111", MaskPhone("+15550001111"))
	assert.Equal(t, "***", MaskPhone("12"))
}
