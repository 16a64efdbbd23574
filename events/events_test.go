package events

import (
	"CareChain/config"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingInvalidator struct {
	ids     []string
	flushes int
	err     error
}

func (r *recordingInvalidator) InvalidateAllUsers(context.Context) error {
	r.flushes++
	return r.err
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

func TestNewPublisher_Disabled(t *testing.T) {
	p, err := NewPublisher(config.RabbitMQConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p)

	// a disabled publisher drops events
	assert.NoError(t, p.Publish(context.Background(), "appointment.created", map[string]string{"id": "a1"}))
	assert.Nil(t, p.Connection())
	assert.NoError(t, p.Close())
}

func TestNewDirectoryListener_WithoutConnection(t *testing.T) {
	l, err := NewDirectoryListener(nil, config.RabbitMQConfig{}, &recordingInvalidator{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, l.Start(context.Background()))
	assert.NoError(t, l.Stop())
}

func TestDirectoryListener_Process(t *testing.T) {
	inv := &recordingInvalidator{}
	l := &DirectoryListener{invalidator: inv, log: zap.NewNop()}
	ctx := context.Background()

	require.NoError(t, l.process(ctx, "identity.user.deactivated", []byte(`{"id":"lab-1"}`)))
	assert.Equal(t, []string{"lab-1"}, inv.ids)

	assert.Error(t, l.process(ctx, "identity.role.updated", []byte(`{"id":"x"}`)))
	assert.Error(t, l.process(ctx, "identity.user.updated", []byte(`not json`)))
	assert.Error(t, l.process(ctx, "identity.user.updated", []byte(`{}`)))
	assert.Len(t, inv.ids, 1)

	require.NoError(t, l.process(ctx, "identity.user.flushed", nil))
	assert.Equal(t, 1, inv.flushes)

	inv.err = errors.New("redis down")
	assert.Error(t, l.process(ctx, "identity.user.updated", []byte(`{"id":"doc-1"}`)))
}
