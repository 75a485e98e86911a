package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
)

type fakeChannel struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
	dest  string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, _ Content, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dest = destination
	return f.err
}

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func allOn() lead.NotificationSettings {
	return lead.NotificationSettings{
		EmailEnabled: true,
		EmailAddress: "ops@example.com",
		SlackEnabled: true,
		SlackWebhook: "https://hooks.example/x",
	}
}

func TestDispatch_AllSucceed(t *testing.T) {
	t.Parallel()

	email := &fakeChannel{name: "email"}
	slack := &fakeChannel{name: "slack"}
	d := NewDispatcher(email, slack, zap.NewNop())

	ok := d.Dispatch(context.Background(), lead.Match{ID: "m1"}, lead.Source{}, lead.Keyword{}, allOn())
	assert.True(t, ok)
	assert.Equal(t, 1, email.callCount())
	assert.Equal(t, 1, slack.callCount())
	assert.Equal(t, "ops@example.com", email.dest)
	assert.Equal(t, "https://hooks.example/x", slack.dest)
}

func TestDispatch_OneChannelFails(t *testing.T) {
	t.Parallel()

	email := &fakeChannel{name: "email", err: errors.New("smtp down")}
	slack := &fakeChannel{name: "slack"}
	d := NewDispatcher(email, slack, zap.NewNop())

	ok := d.Dispatch(context.Background(), lead.Match{ID: "m1"}, lead.Source{}, lead.Keyword{}, allOn())
	assert.True(t, ok)
	assert.Equal(t, 1, email.callCount())
	assert.Equal(t, 1, slack.callCount())
}

func TestDispatch_AllFail(t *testing.T) {
	t.Parallel()

	email := &fakeChannel{name: "email", err: errors.New("smtp down")}
	slack := &fakeChannel{name: "slack", err: errors.New("webhook 500")}
	d := NewDispatcher(email, slack, zap.NewNop())

	ok := d.Dispatch(context.Background(), lead.Match{ID: "m1"}, lead.Source{}, lead.Keyword{}, allOn())
	assert.False(t, ok)
	assert.Equal(t, 1, email.callCount())
	assert.Equal(t, 1, slack.callCount())
}

func TestDispatch_NothingEnabled(t *testing.T) {
	t.Parallel()

	email := &fakeChannel{name: "email"}
	slack := &fakeChannel{name: "slack"}
	d := NewDispatcher(email, slack, zap.NewNop())

	ok := d.Dispatch(context.Background(), lead.Match{ID: "m1"}, lead.Source{}, lead.Keyword{}, lead.NotificationSettings{})
	assert.False(t, ok)
	assert.Zero(t, email.callCount())
	assert.Zero(t, slack.callCount())
}

func TestDispatch_EnabledWithoutDestinationIsSkipped(t *testing.T) {
	t.Parallel()

	email := &fakeChannel{name: "email"}
	slack := &fakeChannel{name: "slack"}
	d := NewDispatcher(email, slack, zap.NewNop())

	settings := lead.NotificationSettings{EmailEnabled: true, SlackEnabled: true, SlackWebhook: "https://hooks.example/x"}
	ok := d.Dispatch(context.Background(), lead.Match{ID: "m1"}, lead.Source{}, lead.Keyword{}, settings)
	assert.True(t, ok)
	assert.Zero(t, email.callCount())
	assert.Equal(t, 1, slack.callCount())
}
