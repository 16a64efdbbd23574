package notifications

import (
	"CareChain/config"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMailer_DisabledWithoutHost(t *testing.T) {
	m := NewMailer(config.MailConfig{OpsAlerts: "ops@example.com"}, zap.NewNop())
	assert.False(t, m.Enabled())
	require.NoError(t, m.Alert(context.Background(), "Unrouted order", "no lab staff"))
}

func TestNewMailer_Recipients(t *testing.T) {
	m := NewMailer(config.MailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		User:      "alerts@example.com",
		OpsAlerts: "ops@example.com, oncall@example.com,",
	}, zap.NewNop())

	assert.True(t, m.Enabled())
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, m.to)
	assert.Equal(t, "alerts@example.com", m.from)

	msg := m.compose("Unrouted order", "<b>Blood Test</b>")
	assert.Equal(t, []string{"[CareChain] Unrouted order"}, msg.GetHeader("Subject"))
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, msg.GetHeader("To"))
}

func TestAlert_CancelledContext(t *testing.T) {
	m := NewMailer(config.MailConfig{Host: "smtp.example.com", OpsAlerts: "ops@example.com"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Alert(ctx, "s", "b"), context.Canceled)
}
