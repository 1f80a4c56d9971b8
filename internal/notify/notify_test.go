package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/blogfeed/internal/blog"
)

func TestNewPostMessage(t *testing.T) {
	cfg := Config{From: "blog@example.com", BaseURL: "https://blog.example.com/"}

	got := NewPostMessage(cfg, blog.NewPost{
		PostID:     "abc-pst",
		Title:      "Hello",
		AuthorName: "alice",
		Recipients: []string{"bob@example.com", "carol@example.com"},
	})

	assert.Equal(t, Message{
		Recipients: []string{"bob@example.com", "carol@example.com"},
		Subject:    "New post from alice",
		Body:       "Hello https://blog.example.com/post/abc-pst/",
	}, got)
}

func TestPostURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "no trailing slash", baseURL: "http://localhost:4444", want: "http://localhost:4444/post/p1/"},
		{name: "trailing slash", baseURL: "http://localhost:4444/", want: "http://localhost:4444/post/p1/"},
		{name: "empty base", baseURL: "", want: "/post/p1/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{BaseURL: tt.baseURL}.PostURL("p1"))
		})
	}
}

func TestNew_FallsBackToLogging(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)

	_, ok := n.(LogNotifier)
	assert.True(t, ok)
	assert.NoError(t, n.NotifyNewPost(context.Background(), blog.NewPost{PostID: "p1", Recipients: []string{"x@example.com"}}))
}

func TestMailer_Build(t *testing.T) {
	m, err := NewMailer(Config{From: "blog@example.com", SMTPHost: "localhost", SMTPPort: 2525})
	require.NoError(t, err)

	msg, err := m.build(Message{
		Recipients: []string{"bob@example.com"},
		Subject:    "New post from alice",
		Body:       "Hello http://localhost/post/p1/",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: New post from alice")
	assert.Contains(t, buf.String(), "Hello http://localhost/post/p1/")
}

func TestMailer_BuildRejectsBadRecipient(t *testing.T) {
	m, err := NewMailer(Config{From: "blog@example.com", SMTPHost: "localhost", SMTPPort: 2525})
	require.NoError(t, err)

	_, err = m.build(Message{Recipients: []string{"not an address"}, Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestMailer_NoRecipients(t *testing.T) {
	m, err := NewMailer(Config{From: "blog@example.com", SMTPHost: "localhost", SMTPPort: 2525})
	require.NoError(t, err)

	// Never dials when there is nobody to send to.
	assert.NoError(t, m.NotifyNewPost(context.Background(), blog.NewPost{PostID: "p1"}))
}
