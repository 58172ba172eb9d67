package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	gomail "gopkg.in/mail.v2"

	"github.com/pure-golang/sheetmail/mail"
)

var _ mail.Sender = (*Sender)(nil)

// DialFunc opens the raw TCP connection to the SMTP server.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Sender implements mail.Sender over net/smtp.
//
// Every message gets its own connection: dial, STARTTLS, AUTH, one
// transaction, QUIT. Nothing is pooled, so a rejected recipient or a broken
// socket never leaks into the next message.
type Sender struct {
	mx     sync.Mutex
	cfg    Config
	dial   DialFunc
	logger *slog.Logger
	closed bool
}

// SenderOptions contains options for creating a Sender.
type SenderOptions struct {
	Logger *slog.Logger
	Dial   DialFunc // defaults to net.Dialer with Config.Timeout
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config, options *SenderOptions) *Sender {
	if options == nil {
		options = &SenderOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Dial == nil {
		d := &net.Dialer{Timeout: cfg.timeout()}
		options.Dial = d.DialContext
	}

	return &Sender{
		cfg:    cfg,
		dial:   options.Dial,
		logger: options.Logger.WithGroup("smtp"),
	}
}

// Send sends the emails one by one, each over a fresh connection, and stops
// at the first failure.
func (s *Sender) Send(ctx context.Context, emails ...mail.Email) error {
	for _, email := range emails {
		if err := s.send(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

// send sends a single email.
func (s *Sender) send(ctx context.Context, email mail.Email) error {
	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.from", email.From.Address),
		attribute.Int("smtp.to_count", len(email.To)),
		attribute.Int("smtp.cc_count", len(email.Cc)),
		attribute.Int("smtp.bcc_count", len(email.Bcc)),
		attribute.Int("smtp.attachments", len(email.Attachments)),
		attribute.String("smtp.host", s.cfg.Host),
		attribute.Int("smtp.port", s.cfg.Port),
		attribute.Bool("smtp.tls", s.cfg.TLS),
	)

	if s.isClosed() {
		span.SetStatus(codes.Error, "sender is closed")
		return errors.New("sender is closed")
	}

	from := email.From.Address
	if from == "" {
		from = s.cfg.From
		email.From.Address = from
	}
	if from == "" {
		return errors.New("no from address specified")
	}

	rcpts := email.Recipients()
	if len(rcpts) == 0 {
		return errors.New("no recipients specified")
	}

	msg, err := buildMessage(email)
	if err != nil {
		recordError(span, err, "failed to build message")
		return err
	}

	if err := s.deliver(ctx, from, rcpts, msg); err != nil {
		recordError(span, err, err.Error())
		return errors.Wrap(err, "failed to send email")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// deliver runs one complete SMTP transaction on its own connection.
func (s *Sender) deliver(ctx context.Context, from string, rcpts []string, msg []byte) error {
	ctx, span := tracer.Start(ctx, "SMTP.Deliver")
	defer span.End()

	sess, err := s.open(ctx)
	if err != nil {
		recordError(span, err, "failed to open session")
		return err
	}
	defer sess.release()

	if err := sess.Mail(from); err != nil {
		recordError(span, err, "failed to set sender")
		return errors.Wrap(err, "failed to set sender")
	}

	for _, addr := range rcpts {
		if err := sess.Rcpt(addr); err != nil {
			recordError(span, err, "failed to set recipient")
			return errors.Wrapf(err, "failed to set recipient: %s", addr)
		}
	}

	writer, err := sess.Data()
	if err != nil {
		recordError(span, err, "failed to get data writer")
		return errors.Wrap(err, "failed to get data writer")
	}
	if _, err := writer.Write(msg); err != nil {
		_ = writer.Close()
		recordError(span, err, "failed to write message")
		return errors.Wrap(err, "failed to write message")
	}
	// The server accepts or rejects the message in its reply to the final dot.
	if err := writer.Close(); err != nil {
		recordError(span, err, "message rejected")
		return errors.Wrap(err, "message rejected")
	}

	if err := sess.Quit(); err != nil {
		// Already accepted; a failed QUIT changes nothing for the recipient.
		s.logger.Debug("quit after delivery failed", "error", err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Verify performs connect, STARTTLS and AUTH without sending anything, so
// bad credentials or an unreachable server show up before the first row.
func (s *Sender) Verify(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SMTP.Verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if s.isClosed() {
		return errors.New("sender is closed")
	}

	sess, err := s.open(ctx)
	if err != nil {
		recordError(span, err, "failed to open session")
		return err
	}
	defer sess.release()

	if err := sess.Quit(); err != nil {
		recordError(span, err, "failed to quit")
		return errors.Wrap(err, "failed to quit")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

type session struct {
	*smtp.Client
	stop func() bool
}

// release closes the connection. Safe after Quit.
func (s *session) release() {
	s.stop()
	_ = s.Client.Close()
}

// open dials, upgrades to TLS when offered and authenticates.
func (s *Sender) open(ctx context.Context) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "context done before dialing")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SMTP server")
	}

	deadline := time.Now().Add(s.cfg.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to read SMTP greeting")
	}
	sess := &session{Client: client, stop: stop}

	if s.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{
				ServerName:         s.cfg.Host,
				InsecureSkipVerify: s.cfg.Insecure, // #nosec G402 -- controlled by config, user's responsibility
			}
			if err := client.StartTLS(tlsConfig); err != nil {
				sess.release()
				return nil, errors.Wrap(err, "failed to start TLS")
			}
		}
	}

	if user := s.cfg.user(); user != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", user, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			sess.release()
			return nil, errors.Wrap(err, "failed to authenticate")
		}
	}

	return sess, nil
}

func (s *Sender) isClosed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.closed
}

// buildMessage renders the email as an RFC 5322 message. Headers with
// non-ASCII text are RFC 2047 encoded, text parts are quoted-printable and
// attachments base64.
func buildMessage(email mail.Email) ([]byte, error) {
	m := gomail.NewMessage()

	m.SetAddressHeader("From", email.From.Address, email.From.Name)
	if len(email.To) > 0 {
		m.SetHeader("To", formatAddressList(m, email.To)...)
	}
	if len(email.Cc) > 0 {
		m.SetHeader("Cc", formatAddressList(m, email.Cc)...)
	}
	m.SetHeader("Subject", email.Subject)

	for k, v := range email.Headers {
		m.SetHeader(k, v)
	}

	m.SetBody("text/plain", email.Body)
	if email.HTML != "" {
		m.AddAlternative("text/html", email.HTML)
	}

	for _, a := range email.Attachments {
		m.Attach(a.Filename, attachmentSettings(a)...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to encode message")
	}
	return buf.Bytes(), nil
}

func attachmentSettings(a mail.Attachment) []gomail.FileSetting {
	data := a.Data
	settings := []gomail.FileSetting{
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}),
	}
	if a.ContentType != "" {
		settings = append(settings, gomail.SetHeader(map[string][]string{
			"Content-Type": {attachmentContentType(a)},
		}))
	}
	return settings
}

// attachmentContentType adds the name parameter to the attachment media type.
func attachmentContentType(a mail.Attachment) string {
	mediaType, params, err := mime.ParseMediaType(a.ContentType)
	if err != nil {
		return a.ContentType
	}
	params["name"] = a.Filename
	if ct := mime.FormatMediaType(mediaType, params); ct != "" {
		return ct
	}
	return a.ContentType
}

func formatAddressList(m *gomail.Message, addrs []mail.Address) []string {
	formatted := make([]string, len(addrs))
	for i, addr := range addrs {
		formatted[i] = m.FormatAddress(addr.Address, addr.Name)
	}
	return formatted
}

// Close closes the sender. Connections are per message, so there is nothing
// to tear down beyond refusing further sends.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}
