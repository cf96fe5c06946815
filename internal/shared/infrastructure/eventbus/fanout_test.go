package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	published int
	err       error
	closed    bool
}

func (p *countingPublisher) Publish(context.Context, string, []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published++
	return nil
}

func (p *countingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestFanout(t *testing.T) {
	first, second := &countingPublisher{}, &countingPublisher{}
	f := NewFanout(first, second)

	require.NoError(t, f.Publish(context.Background(), "family.plan.created", []byte(`{}`)))
	assert.Equal(t, 1, first.published)
	assert.Equal(t, 1, second.published)

	first.err = errors.New("broker down")
	assert.Error(t, f.Publish(context.Background(), "family.plan.created", []byte(`{}`)))
	assert.Equal(t, 1, second.published, "later publishers are skipped after a failure")

	require.NoError(t, f.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}
