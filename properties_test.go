package amqp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesFlagsOnlySetForNonZeroFields(t *testing.T) {
	p := Properties{ContentType: "text/plain", Priority: 3}
	flags := p.flags()
	assert.NotZero(t, flags&flagContentType)
	assert.NotZero(t, flags&flagPriority)
	assert.Zero(t, flags&flagReplyTo)
	assert.Zero(t, flags&flagHeaders)
}

func TestPropertiesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Properties
	}{
		{"empty", Properties{}},
		{"all fields", Properties{
			ContentType:     "application/json",
			ContentEncoding: "gzip",
			Headers:         Table{"x-retry": int32(2)},
			DeliveryMode:    2,
			Priority:        9,
			CorrelationID:   "corr-1",
			ReplyTo:         "replies",
			Expiration:      "60000",
			MessageID:       "msg-1",
			Timestamp:       time.Unix(1700000000, 0),
			Type:            "order.created",
			UserID:          "guest",
			AppID:           "billing",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.in.write(&buf))

			got, err := readProperties(&buf)
			require.NoError(t, err)

			assert.Equal(t, tt.in.ContentType, got.ContentType)
			assert.Equal(t, tt.in.ContentEncoding, got.ContentEncoding)
			assert.Equal(t, tt.in.Headers, got.Headers)
			assert.Equal(t, tt.in.DeliveryMode, got.DeliveryMode)
			assert.Equal(t, tt.in.Priority, got.Priority)
			assert.Equal(t, tt.in.CorrelationID, got.CorrelationID)
			assert.Equal(t, tt.in.ReplyTo, got.ReplyTo)
			assert.Equal(t, tt.in.Expiration, got.Expiration)
			assert.Equal(t, tt.in.MessageID, got.MessageID)
			assert.Equal(t, tt.in.Timestamp.Unix(), got.Timestamp.Unix())
			assert.Equal(t, tt.in.Type, got.Type)
			assert.Equal(t, tt.in.UserID, got.UserID)
			assert.Equal(t, tt.in.AppID, got.AppID)
		})
	}
}
