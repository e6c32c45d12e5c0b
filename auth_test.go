package amqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainAuthResponse(t *testing.T) {
	a := &PlainAuth{Username: "guest", Password: "guest"}
	assert.Equal(t, "PLAIN", a.Mechanism())
	assert.Equal(t, "\x00guest\x00guest", a.Response())
}

func TestAMQPPlainAuthResponseEncodesFieldTable(t *testing.T) {
	a := &AMQPPlainAuth{Username: "guest", Password: "guest"}
	assert.Equal(t, "AMQPLAIN", a.Mechanism())

	resp := a.Response()
	assert.Contains(t, resp, "LOGIN")
	assert.Contains(t, resp, "guest")
	assert.Contains(t, resp, "PASSWORD")
}

func TestPickSASLMechanismPrefersClientOrder(t *testing.T) {
	client := []Authentication{
		&AMQPPlainAuth{Username: "u", Password: "p"},
		&PlainAuth{Username: "u", Password: "p"},
	}

	auth, ok := pickSASLMechanism(client, []string{"PLAIN", "AMQPLAIN"})
	assert.True(t, ok)
	assert.Equal(t, "AMQPLAIN", auth.Mechanism())
}

func TestPickSASLMechanismFailsWhenNoOverlap(t *testing.T) {
	client := []Authentication{&PlainAuth{}}
	_, ok := pickSASLMechanism(client, []string{"EXTERNAL"})
	assert.False(t, ok)
}
