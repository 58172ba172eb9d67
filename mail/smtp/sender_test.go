package smtp

import (
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/sheetmail/mail"
)

func testEmail(to string) mail.Email {
	return mail.Email{
		From:    mail.Address{Name: "Sender", Address: "sender@example.com"},
		To:      []mail.Address{{Name: "Alice", Address: to}},
		Subject: "Documents for Alice",
		Body:    "Dear Alice,\n\nSee attached.\n\nSender",
	}
}

func TestNewSender_Defaults(t *testing.T) {
	s := NewSender(Config{Host: "localhost", Port: 25}, nil)
	require.NotNil(t, s)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.dial)
	assert.False(t, s.closed)
}

func TestConfig_UserFallsBackToFrom(t *testing.T) {
	assert.Equal(t, "from@example.com", Config{From: "from@example.com"}.user())
	assert.Equal(t, "user", Config{Username: "user", From: "from@example.com"}.user())
}

func TestConfig_Timeout(t *testing.T) {
	assert.Equal(t, defaultTimeout, Config{}.timeout())
	assert.Equal(t, time.Second, Config{Timeout: time.Second}.timeout())
}

func TestSender_Send(t *testing.T) {
	srv := startFakeServer(t)
	s := NewSender(srv.config(), nil)
	defer s.Close()

	err := s.Send(context.Background(), testEmail("alice@example.com"))
	require.NoError(t, err)

	messages, envelopes, _ := srv.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"alice@example.com"}, envelopes[0])
	assert.Contains(t, messages[0], "Subject: Documents for Alice")
	assert.Contains(t, messages[0], `To: "Alice" <alice@example.com>`)
}

func TestSender_OneConnectionPerMessage(t *testing.T) {
	srv := startFakeServer(t)
	s := NewSender(srv.config(), nil)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Send(ctx, testEmail("a@example.com"), testEmail("b@example.com")))
	require.NoError(t, s.Send(ctx, testEmail("c@example.com")))

	messages, _, connections := srv.snapshot()
	assert.Len(t, messages, 3)
	assert.Equal(t, 3, connections)
	assert.Eventually(t, func() bool { return srv.activeConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSender_RejectedRecipientDoesNotAffectNextMessage(t *testing.T) {
	srv := startFakeServer(t)
	srv.rejectRecipient("bad@example.com")
	s := NewSender(srv.config(), nil)
	defer s.Close()

	ctx := context.Background()
	err := s.Send(ctx, testEmail("bad@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad@example.com")

	require.NoError(t, s.Send(ctx, testEmail("good@example.com")))

	messages, envelopes, connections := srv.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"good@example.com"}, envelopes[0])
	assert.Equal(t, 2, connections)
	assert.Eventually(t, func() bool { return srv.activeConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSender_SendStopsAtFirstFailure(t *testing.T) {
	srv := startFakeServer(t)
	srv.rejectRecipient("bad@example.com")
	s := NewSender(srv.config(), nil)
	defer s.Close()

	err := s.Send(context.Background(),
		testEmail("ok@example.com"),
		testEmail("bad@example.com"),
		testEmail("never@example.com"),
	)
	require.Error(t, err)

	messages, _, _ := srv.snapshot()
	assert.Len(t, messages, 1)
}

func TestSender_Auth(t *testing.T) {
	srv := startFakeServer(t)
	cfg := srv.config()
	cfg.From = "me@example.com"
	cfg.Password = "app-password"
	s := NewSender(cfg, nil)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), testEmail("alice@example.com")))

	attempts := srv.authAttempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "\x00me@example.com\x00app-password", attempts[0])
}

func TestSender_AuthFailure(t *testing.T) {
	srv := startFakeServer(t)
	cfg := srv.config()
	cfg.Username = "me@example.com"
	cfg.Password = "wrong"
	s := NewSender(cfg, nil)
	defer s.Close()

	err := s.Send(context.Background(), testEmail("alice@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to authenticate")

	messages, _, _ := srv.snapshot()
	assert.Empty(t, messages)
	assert.Eventually(t, func() bool { return srv.activeConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSender_SkipsAuthWithoutPassword(t *testing.T) {
	srv := startFakeServer(t)
	cfg := srv.config()
	cfg.From = "me@example.com"
	s := NewSender(cfg, nil)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), testEmail("alice@example.com")))
	assert.Empty(t, srv.authAttempts())
}

func TestSender_DefaultFrom(t *testing.T) {
	srv := startFakeServer(t)
	cfg := srv.config()
	cfg.From = "default@example.com"
	s := NewSender(cfg, nil)
	defer s.Close()

	email := testEmail("alice@example.com")
	email.From = mail.Address{}
	require.NoError(t, s.Send(context.Background(), email))

	messages, _, _ := srv.snapshot()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "From: default@example.com")
}

func TestSender_Validation(t *testing.T) {
	s := NewSender(Config{Host: "127.0.0.1", Port: 1}, nil)
	ctx := context.Background()

	email := testEmail("alice@example.com")
	email.From = mail.Address{}
	err := s.Send(ctx, email)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no from address specified")

	email = testEmail("alice@example.com")
	email.To = nil
	err = s.Send(ctx, email)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients specified")
}

func TestSender_Closed(t *testing.T) {
	srv := startFakeServer(t)
	s := NewSender(srv.config(), nil)
	require.NoError(t, s.Close())

	err := s.Send(context.Background(), testEmail("alice@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender is closed")

	err = s.Verify(context.Background())
	require.Error(t, err)

	_, _, connections := srv.snapshot()
	assert.Zero(t, connections)
}

func TestSender_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	s := NewSender(Config{Host: "smtp.example.com", Port: 587}, &SenderOptions{
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "smtp.example.com:587", addr)
			return nil, dialErr
		},
	})

	err := s.Send(context.Background(), testEmail("alice@example.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)
	assert.Contains(t, err.Error(), "failed to connect to SMTP server")
}

func TestSender_CanceledContext(t *testing.T) {
	srv := startFakeServer(t)
	s := NewSender(srv.config(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, testEmail("alice@example.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSender_Verify(t *testing.T) {
	srv := startFakeServer(t)
	cfg := srv.config()
	cfg.From = "me@example.com"
	cfg.Password = "app-password"
	s := NewSender(cfg, nil)
	defer s.Close()

	require.NoError(t, s.Verify(context.Background()))

	messages, _, connections := srv.snapshot()
	assert.Empty(t, messages)
	assert.Equal(t, 1, connections)
	assert.Len(t, srv.authAttempts(), 1)
}

func TestSender_VerifyUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	s := NewSender(Config{Host: "127.0.0.1", Port: port, Timeout: time.Second}, nil)
	err = s.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to SMTP server")
}

func TestBuildMessage(t *testing.T) {
	email := mail.Email{
		From:    mail.Address{Name: "Your Name Here", Address: "me@example.com"},
		To:      []mail.Address{{Name: "Alice", Address: "alice@example.com"}},
		Cc:      []mail.Address{{Address: "cc@example.com"}},
		Bcc:     []mail.Address{{Address: "hidden@example.com"}},
		Subject: "Report",
		Body:    "Dear Alice",
		Headers: map[string]string{"X-Run-Id": "run-1"},
		Attachments: []mail.Attachment{{
			Filename:    "sample.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 fake"),
		}},
	}

	raw, err := buildMessage(email)
	require.NoError(t, err)
	msg := string(raw)

	assert.Contains(t, msg, `From: "Your Name Here" <me@example.com>`)
	assert.Contains(t, msg, `To: "Alice" <alice@example.com>`)
	assert.Contains(t, msg, "Cc: cc@example.com")
	assert.NotContains(t, msg, "hidden@example.com")
	assert.Contains(t, msg, "Subject: Report")
	assert.Contains(t, msg, "X-Run-Id: run-1")
	assert.Contains(t, msg, "Date: ")
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, "application/pdf")
	assert.Contains(t, msg, `filename="sample.pdf"`)
	assert.Contains(t, msg, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")))
	assert.Contains(t, msg, "Dear Alice")
}

func TestBuildMessage_NonASCIISubject(t *testing.T) {
	email := mail.Email{
		From:    mail.Address{Address: "me@example.com"},
		To:      []mail.Address{{Address: "alice@example.com"}},
		Subject: "給 王小明 的重要文件",
		Body:    "附件請查閱。",
	}

	raw, err := buildMessage(email)
	require.NoError(t, err)
	msg := string(raw)

	assert.NotContains(t, msg, "Subject: 給")
	assert.Contains(t, msg, "Subject: =?UTF-8?")
	assert.Contains(t, msg, "quoted-printable")
	assert.NotContains(t, msg, "multipart/mixed")
}

func TestBuildMessage_HTMLAlternative(t *testing.T) {
	email := testEmail("alice@example.com")
	email.HTML = "<p>Dear Alice</p>"

	raw, err := buildMessage(email)
	require.NoError(t, err)

	msg := string(raw)
	assert.Contains(t, msg, "multipart/alternative")
	assert.True(t, strings.Index(msg, "text/plain") < strings.Index(msg, "text/html"))
}

func TestAttachmentContentType(t *testing.T) {
	tests := []struct {
		name string
		att  mail.Attachment
		want string
	}{
		{"plain type", mail.Attachment{Filename: "a.pdf", ContentType: "application/pdf"}, "application/pdf; name=a.pdf"},
		{"with params", mail.Attachment{Filename: "a.txt", ContentType: "text/plain; charset=utf-8"}, "text/plain; charset=utf-8; name=a.txt"},
		{"unparseable", mail.Attachment{Filename: "a.bin", ContentType: "garbage/"}, "garbage/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attachmentContentType(tt.att))
		})
	}
}
