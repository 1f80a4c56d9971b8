// Package notify tells subscribers about new posts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"

	"github.com/jdholdren/blogfeed/internal/blog"
)

type (
	// Config is where notifications come from and how they are sent.
	Config struct {
		From    string // Sender address
		BaseURL string // Prefix for links back to posts

		SMTPHost     string
		SMTPPort     int
		SMTPUsername string
		SMTPPassword string
	}

	// Message is a rendered notification.
	Message struct {
		Recipients []string
		Subject    string
		Body       string
	}
)

// PostURL is the link to a post that gets sent out.
func (c Config) PostURL(postID string) string {
	return fmt.Sprintf("%s/post/%s/", strings.TrimRight(c.BaseURL, "/"), postID)
}

// NewPostMessage renders the notification for a new post.
func NewPostMessage(cfg Config, np blog.NewPost) Message {
	return Message{
		Recipients: np.Recipients,
		Subject:    fmt.Sprintf("New post from %s", np.AuthorName),
		Body:       fmt.Sprintf("%s %s", np.Title, cfg.PostURL(np.PostID)),
	}
}

// New picks the notifier for cfg: SMTP when a host is configured, logging otherwise.
func New(cfg Config) (blog.Notifier, error) {
	if cfg.SMTPHost == "" {
		slog.Warn("no smtp host configured, notifications will only be logged")
		return LogNotifier{cfg: cfg}, nil
	}

	return NewMailer(cfg)
}

// Mailer sends notifications over SMTP. Every subscriber is blind copied on a single email.
type Mailer struct {
	cfg    Config
	client *mail.Client

	mu sync.Mutex // The client holds one connection at a time
}

var _ blog.Notifier = (*Mailer)(nil)

func NewMailer(cfg Config) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating mail client: %w", err)
	}

	return &Mailer{
		cfg:    cfg,
		client: client,
	}, nil
}

func (m *Mailer) NotifyNewPost(ctx context.Context, np blog.NewPost) error {
	if len(np.Recipients) == 0 {
		return nil
	}

	msg, err := m.build(NewPostMessage(m.cfg, np))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("error sending new post email: %w", err)
	}
	slog.InfoContext(ctx, "sent new post email", "post_id", np.PostID, "recipients", len(np.Recipients))

	return nil
}

func (m *Mailer) build(message Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("error setting sender: %w", err)
	}
	if err := msg.Bcc(message.Recipients...); err != nil {
		return nil, fmt.Errorf("error setting recipients: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(mail.TypeTextPlain, message.Body)

	return msg, nil
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	cfg Config
}

var _ blog.Notifier = LogNotifier{}

func (l LogNotifier) NotifyNewPost(ctx context.Context, np blog.NewPost) error {
	msg := NewPostMessage(l.cfg, np)
	slog.InfoContext(ctx, "new post notification",
		"subject", msg.Subject,
		"body", msg.Body,
		"recipients", len(msg.Recipients),
	)

	return nil
}
