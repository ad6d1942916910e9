package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledMailerReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"guest@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestEnabledMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)
}

func TestUniqueAddresses(t *testing.T) {
	out := uniqueAddresses([]string{"a@example.com", " A@example.com ", "", "b@example.com"})
	require.Equal(t, []string{"a@example.com", "b@example.com"}, out)
}

func TestFormatMessageContainsHeaders(t *testing.T) {
	msg := formatMessage("from@example.com", []string{"to@example.com"}, "Hello", "Body")
	require.Contains(t, msg, "From: from@example.com\r\n")
	require.Contains(t, msg, "Subject: Hello\r\n")
	require.Contains(t, msg, "\r\nBody\r\n")
}
