package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("bills@example.com", "me@example.com", "Due today: Rent", "<p>pay</p>")
	require.NoError(t, err)

	to := msg.GetTo()
	require.Len(t, to, 1)
	assert.Equal(t, "me@example.com", to[0].Address)
	from := msg.GetFrom()
	require.Len(t, from, 1)
	assert.Equal(t, "bills@example.com", from[0].Address)
	assert.Equal(t, []string{"Due today: Rent"}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestBuildMessage_InvalidAddress(t *testing.T) {
	_, err := buildMessage("not an address", "me@example.com", "s", "b")
	assert.Error(t, err)

	_, err = buildMessage("bills@example.com", "", "s", "b")
	assert.Error(t, err)
}

func TestTLSPolicy(t *testing.T) {
	p, err := tlsPolicy("")
	require.NoError(t, err)
	assert.Equal(t, mail.TLSMandatory, p)

	p, err = tlsPolicy("none")
	require.NoError(t, err)
	assert.Equal(t, mail.NoTLS, p)

	_, err = tlsPolicy("always")
	assert.Error(t, err)
}
