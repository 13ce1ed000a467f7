package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(*MockChannel)
		expectedError string
	}{
		{
			name: "wraps payload in pattern envelope",
			setupMocks: func(ch *MockChannel) {
				ch.On("Publish", "order.exchange", "order.created", false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
					var m map[string]any
					if err := json.Unmarshal(msg.Body, &m); err != nil {
						return false
					}
					data, _ := m["data"].(map[string]any)
					return m["pattern"] == "order.created" && data["orderId"] == float64(9) &&
						msg.ContentType == "application/json"
				})).Return(nil)
			},
		},
		{
			name: "channel failure",
			setupMocks: func(ch *MockChannel) {
				ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed"))
			},
			expectedError: "failed to publish message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := new(MockChannel)
			tt.setupMocks(ch)
			p := &Publisher{channel: ch, exchange: "order.exchange"}

			err := p.Publish(context.Background(), "order.created", map[string]any{"orderId": 9})

			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			ch.AssertExpectations(t)
		})
	}
}
