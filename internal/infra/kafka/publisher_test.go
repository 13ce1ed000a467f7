package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"furniture-order-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 &&
			string(msgs[0].Key) == "42" &&
			string(msgs[0].Headers[0].Value) == domain.EventOrderCreated
	})).Return(nil)

	p := &Publisher{w: w}
	err := p.Publish(context.Background(), domain.EventOrderCreated, domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: 42})

	assert.NoError(t, err)
	w.AssertExpectations(t)
}

func TestPublisher_PublishUnkeyed(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && msgs[0].Key == nil
	})).Return(errors.New("leader not available"))

	err := (&Publisher{w: w}).Publish(context.Background(), "misc", map[string]string{"a": "b"})

	assert.ErrorContains(t, err, "leader not available")
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewPublisher(nil, "order-events")
	assert.Error(t, err)
}

func TestNewPublisher_FlushesWithoutWaitingForBatch(t *testing.T) {
	p, err := NewPublisher([]string{"localhost:9092"}, "order-events")
	require.NoError(t, err)
	defer p.Close()

	w, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "order-events", w.Topic)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.NotZero(t, w.BatchTimeout)
}
