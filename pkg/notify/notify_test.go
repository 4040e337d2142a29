package notify

import (
	"context"
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type outbox struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]error
}

func (o *outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[msg.To]; err != nil {
		return err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func TestSubscribeAndNotify(t *testing.T) {
	ctx := context.Background()
	box := &outbox{}
	svc, err := New(NewMemoryStore(), box)
	require.NoError(t, err)

	require.NoError(t, svc.Subscribe(ctx, "t1", "Jane <jane@example.com>"))
	require.NoError(t, svc.Subscribe(ctx, "t1", "jane@example.com"))
	require.NoError(t, svc.Subscribe(ctx, "t1", "bob@example.com"))

	err = svc.Notify(ctx, core.Notification{
		ThreadID: "t1",
		Fields:   core.Fields{"name": "Ann", "message": "Nice post"},
		Options:  core.Options{"origin": "https://blog.example.com/post"},
		SiteName: "Jane's blog",
	})
	require.NoError(t, err)

	require.Len(t, box.sent, 2)
	assert.Equal(t, "bob@example.com", box.sent[0].To)
	assert.Equal(t, "jane@example.com", box.sent[1].To)
	assert.Equal(t, "New reply on Jane's blog", box.sent[0].Subject)
	assert.Contains(t, box.sent[0].Body, "message: Nice post")
	assert.Contains(t, box.sent[0].Body, "name: Ann")
	assert.Contains(t, box.sent[0].Body, "See it at https://blog.example.com/post")
}

func TestSubscribe_InvalidAddress(t *testing.T) {
	svc, err := New(NewMemoryStore(), &outbox{})
	require.NoError(t, err)
	assert.Error(t, svc.Subscribe(context.Background(), "t1", "not an address"))
}

func TestNotify_EmptyThread(t *testing.T) {
	box := &outbox{}
	svc, err := New(NewMemoryStore(), box)
	require.NoError(t, err)
	require.NoError(t, svc.Notify(context.Background(), core.Notification{ThreadID: "none"}))
	assert.Empty(t, box.sent)
}

func TestNotify_PartialFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("mailbox full")
	box := &outbox{fail: map[string]error{"a@example.com": boom}}
	svc, err := New(NewMemoryStore(), box)
	require.NoError(t, err)
	require.NoError(t, svc.Subscribe(ctx, "t1", "a@example.com"))
	require.NoError(t, svc.Subscribe(ctx, "t1", "b@example.com"))

	err = svc.Notify(ctx, core.Notification{ThreadID: "t1"})
	assert.ErrorIs(t, err, boom)
	require.Len(t, box.sent, 1)
	assert.Equal(t, "b@example.com", box.sent[0].To)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &outbox{})
	assert.Error(t, err)
	_, err = New(NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	added, err := s.Add(ctx, "t", "a@example.com")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Add(ctx, "t", "a@example.com")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, s.Remove(ctx, "t", "a@example.com"))
	members, err := s.Members(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSMTPMailer(t *testing.T) {
	var sent []*mail.Msg
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Username: "u", Password: "p", From: "discuss@example.com"})
	m.now = func() time.Time { return time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC) }
	m.send = func(_ context.Context, msg *mail.Msg) error {
		sent = append(sent, msg)
		return nil
	}
	assert.Equal(t, 587, m.cfg.Port)

	require.NoError(t, m.Send(context.Background(), Message{To: "jane@example.com", Subject: "New reply on Café Blog", Body: "line1\nline2"}))
	require.Len(t, sent, 1)

	var buf bytes.Buffer
	_, err := sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "From: <discuss@example.com>")
	assert.Contains(t, raw, "To: <jane@example.com>")
	assert.Contains(t, raw, "Subject: =?UTF-8?q?New_reply_on_Caf=C3=A9_Blog?=\r\n")
	assert.Contains(t, raw, "Date: Sat, 09 Mar 2024 13:05:07 +0000\r\n")
	assert.NotContains(t, raw, "Café")

	t.Run("Invalid Recipient", func(t *testing.T) {
		err := m.Send(context.Background(), Message{To: "not an address"})
		assert.ErrorContains(t, err, "invalid recipient")
		assert.Len(t, sent, 1)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, m.Send(ctx, Message{To: "x@example.com"}), context.Canceled)
	})

	t.Run("Relay Error", func(t *testing.T) {
		m.send = func(context.Context, *mail.Msg) error { return errors.New("connection refused") }
		err := m.Send(context.Background(), Message{To: "x@example.com", Subject: "Hi"})
		assert.ErrorContains(t, err, "mail.example.com:587")
	})
}
