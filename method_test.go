package amqp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Method
	}{
		{"connection.start-ok", &connectionStartOk{
			ClientProperties: Table{"product": "go-amqp091"},
			Mechanism:        "PLAIN",
			Response:         "\x00guest\x00guest",
			Locale:           "en_US",
		}},
		{"connection.tune-ok", &connectionTuneOk{ChannelMax: 2047, FrameMax: 131072, Heartbeat: 60}},
		{"connection.open", &connectionOpen{VirtualHost: "/"}},
		{"connection.close", &connectionClose{ReplyCode: 200, ReplyText: "goodbye", ClassID: 0, MethodID: 0}},
		{"channel.open", &channelOpen{}},
		{"channel.close", &channelClose{ReplyCode: 200, ReplyText: "bye", ClassID: 0, MethodID: 0}},
		{"exchange.declare", &exchangeDeclare{Exchange: "orders", Type: "topic", Durable: true, Arguments: Table{}}},
		{"queue.declare", &queueDeclare{Queue: "jobs", Durable: true, Arguments: Table{"x-max-length": int32(100)}}},
		{"queue.bind", &queueBind{Queue: "jobs", Exchange: "orders", RoutingKey: "#", Arguments: Table{}}},
		{"basic.qos", &basicQos{PrefetchCount: 10, Global: false}},
		{"basic.consume", &basicConsume{Queue: "jobs", ConsumerTag: "c1", Arguments: Table{}}},
		{"basic.publish", &basicPublish{Exchange: "orders", RoutingKey: "created", Mandatory: true}},
		{"basic.ack", &basicAck{DeliveryTag: 9, Multiple: true}},
		{"basic.reject", &basicReject{DeliveryTag: 9, Requeue: true}},
		{"confirm.select", &confirmSelect{NoWait: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.in.write(&buf))

			class, method := tt.in.id()
			got, err := decodeMethod(class, method, &buf)
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
		})
	}
}

func TestDecodeMethodRejectsUnknownPair(t *testing.T) {
	_, err := decodeMethod(9999, 1, bytes.NewReader(nil))
	require.Error(t, err)
	var malformed *MalformedFrameError
	assert.ErrorAs(t, err, &malformed)
}

func TestIsContentBearingOnlyFlagsDeliverReturnGetOk(t *testing.T) {
	assert.True(t, isContentBearing(classBasic, 60))
	assert.True(t, isContentBearing(classBasic, 50))
	assert.True(t, isContentBearing(classBasic, 71))
	assert.False(t, isContentBearing(classBasic, 40))
	assert.False(t, isContentBearing(classChannel, 10))
}

func TestIsSyncReplyCoversDeclareOkFamily(t *testing.T) {
	assert.True(t, isSyncReply(classQueue, 11))
	assert.True(t, isSyncReply(classExchange, 11))
	assert.True(t, isSyncReply(classBasic, 72))
	assert.False(t, isSyncReply(classBasic, 71)) // get-ok is content-bearing, not a bare sync reply
	assert.False(t, isSyncReply(classBasic, 60)) // deliver is never a sync reply
}
