package amqp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		frameType byte
		channelID uint16
		payload   []byte
	}{
		{"empty payload", frameMethod, 0, nil},
		{"method on channel 1", frameMethod, 1, []byte{0x00, 0x0A, 0x00, 0x0A}},
		{"body on channel 7", frameBody, 7, bytes.Repeat([]byte{0x42}, 128)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := envelope(tt.frameType, tt.channelID, tt.payload)
			require.NoError(t, err)

			assert.Equal(t, tt.frameType, raw[0])
			assert.Equal(t, tt.channelID, uint16(raw[1])<<8|uint16(raw[2]))
			assert.Equal(t, frameEnd, int(raw[len(raw)-1]))
			assert.Equal(t, tt.payload, raw[frameHeaderLen:len(raw)-1])
		})
	}
}

func TestFrameReaderDecodesMethodFrame(t *testing.T) {
	raw, err := encodeMethod(3, &channelOpen{})
	require.NoError(t, err)

	fr := newFrameReader(bytes.NewReader(raw))
	f, err := fr.decodeFrame()
	require.NoError(t, err)

	mf, ok := f.(*methodFrame)
	require.True(t, ok)
	assert.Equal(t, uint16(3), mf.channel())
	_, ok = mf.Method.(*channelOpen)
	assert.True(t, ok)
}

func TestFrameReaderRejectsBadTerminator(t *testing.T) {
	raw, err := encodeMethod(0, &channelOpen{})
	require.NoError(t, err)
	raw[len(raw)-1] = 0x00

	fr := newFrameReader(bytes.NewReader(raw))
	_, err = fr.decodeFrame()
	require.Error(t, err)
	var malformed *MalformedFrameError
	assert.ErrorAs(t, err, &malformed)
}

func TestFrameReaderDecodesHeartbeat(t *testing.T) {
	raw, err := encodeHeartbeat()
	require.NoError(t, err)

	fr := newFrameReader(bytes.NewReader(raw))
	f, err := fr.decodeFrame()
	require.NoError(t, err)

	_, ok := f.(*heartbeatFrame)
	assert.True(t, ok)
}

func TestFrameWriterWritesEveryFrameBeforeFlush(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)

	a, _ := encodeMethod(1, &channelOpen{})
	b, _ := encodeMethod(1, &channelClose{ReplyCode: 200, ReplyText: "bye"})

	require.NoError(t, fw.writeFrames(a, b))
	assert.Equal(t, append(append([]byte{}, a...), b...), buf.Bytes())
}

func TestHeaderFrameRoundTrip(t *testing.T) {
	props := Properties{ContentType: "text/plain", DeliveryMode: 2}
	raw, err := encodeHeader(5, classBasic, 11, props)
	require.NoError(t, err)

	fr := newFrameReader(bytes.NewReader(raw))
	f, err := fr.decodeFrame()
	require.NoError(t, err)

	hf, ok := f.(*headerFrame)
	require.True(t, ok)
	assert.Equal(t, uint16(5), hf.ChannelID)
	assert.Equal(t, uint16(classBasic), hf.ClassID)
	assert.Equal(t, uint64(11), hf.BodySize)
	assert.Equal(t, "text/plain", hf.Properties.ContentType)
	assert.Equal(t, uint8(2), hf.Properties.DeliveryMode)
}
