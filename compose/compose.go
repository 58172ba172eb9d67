// Package compose builds the per-recipient message: a fixed template with
// the recipient and sender names substituted, plus one shared attachment.
package compose

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/mail"
)

type Config struct {
	SenderAddress  string `envconfig:"SENDER_EMAIL" required:"true"`
	SenderName     string `envconfig:"SENDER_NAME" default:"Your Name Here"`
	AttachmentPath string `envconfig:"ATTACH_PATH" default:"./sample.pdf"` // local path or s3://bucket/key
}

// Placeholders recognised in a Template. Substitution is literal.
const (
	PlaceholderName   = "{name}"
	PlaceholderSender = "{sender}"
)

type Template struct {
	Subject string
	Body    string
}

// DefaultTemplate is the stock message.
var DefaultTemplate = Template{
	Subject: "給 {name} 的重要文件",
	Body:    "Dear {name},\n\n附件請查閱。\n\n{sender} 敬上",
}

// Render substitutes both placeholders in one pass, so a name that itself
// contains a placeholder is left as written.
func (t Template) Render(name, sender string) (subject, body string) {
	r := strings.NewReplacer(PlaceholderName, name, PlaceholderSender, sender)
	return r.Replace(t.Subject), r.Replace(t.Body)
}

// Composer builds messages from a template and the configured attachment.
type Composer struct {
	cfg   Config
	tmpl  Template
	files Loader
}

func New(cfg Config, tmpl Template, files Loader) *Composer {
	return &Composer{cfg: cfg, tmpl: tmpl, files: files}
}

// Build returns the message for one recipient. The attachment is read on
// every call; a missing attachment is left out, any other read failure is
// returned.
func (c *Composer) Build(ctx context.Context, name, to string) (mail.Email, error) {
	if strings.TrimSpace(to) == "" {
		return mail.Email{}, errors.New("empty recipient address")
	}

	subject, body := c.tmpl.Render(name, c.cfg.SenderName)
	email := mail.Email{
		From:    mail.Address{Name: c.cfg.SenderName, Address: c.cfg.SenderAddress},
		To:      []mail.Address{{Name: name, Address: to}},
		Subject: subject,
		Body:    body,
	}

	if c.cfg.AttachmentPath == "" || c.files == nil {
		return email, nil
	}

	att, err := c.files.Load(ctx, c.cfg.AttachmentPath)
	if err != nil {
		return mail.Email{}, errors.Wrap(err, "failed to load attachment")
	}
	if att != nil {
		email.Attachments = []mail.Attachment{*att}
	}

	return email, nil
}
