package smtp

import (
	"bufio"
	"encoding/base64"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal plaintext SMTP server. It accepts AUTH PLAIN,
// rejects RCPT for addresses listed in reject and keeps every accepted
// message.
type fakeServer struct {
	listener net.Listener

	mu          sync.Mutex
	messages    []string
	envelopes   [][]string
	credentials []string
	connections int
	active      int
	reject      map[string]bool
	advertise   bool // advertise AUTH
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start SMTP server")

	s := &fakeServer{
		listener:  listener,
		reject:    map[string]bool{},
		advertise: true,
	}
	go s.serve()
	t.Cleanup(func() { _ = listener.Close() })

	return s
}

func (s *fakeServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) config() Config {
	return Config{
		Host: "127.0.0.1",
		Port: s.port(),
		TLS:  false,
	}
}

func (s *fakeServer) rejectRecipient(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject[addr] = true
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.connections++
		s.active++
		s.mu.Unlock()

		go func() {
			defer func() {
				_ = conn.Close()
				s.mu.Lock()
				s.active--
				s.mu.Unlock()
			}()
			s.handle(conn)
		}()
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	reply := func(line string) {
		_, _ = w.WriteString(line + "\r\n")
		_ = w.Flush()
	}

	reply("220 localhost ESMTP fake")

	var rcpts []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			s.mu.Lock()
			advertise := s.advertise
			s.mu.Unlock()
			if advertise {
				reply("250-localhost")
				reply("250 AUTH PLAIN")
			} else {
				reply("250 localhost")
			}
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			raw, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len("AUTH PLAIN"):]))
			s.mu.Lock()
			s.credentials = append(s.credentials, string(raw))
			s.mu.Unlock()
			if strings.HasSuffix(string(raw), "\x00wrong") {
				reply("535 authentication failed")
				continue
			}
			reply("235 accepted")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			rcpts = nil
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			addr := strings.Trim(line[len("RCPT TO:"):], " <>")
			s.mu.Lock()
			rejected := s.reject[addr]
			s.mu.Unlock()
			if rejected {
				reply("550 no such user")
				continue
			}
			rcpts = append(rcpts, addr)
			reply("250 OK")
		case upper == "DATA":
			reply("354 go ahead")
			var msg strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				msg.WriteString(strings.TrimPrefix(l, "."))
			}
			s.mu.Lock()
			s.messages = append(s.messages, msg.String())
			s.envelopes = append(s.envelopes, rcpts)
			s.mu.Unlock()
			reply("250 queued")
		case upper == "RSET", upper == "NOOP":
			reply("250 OK")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("500 unrecognized")
		}
	}
}

func (s *fakeServer) snapshot() (messages []string, envelopes [][]string, connections int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...), append([][]string(nil), s.envelopes...), s.connections
}

func (s *fakeServer) activeConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeServer) authAttempts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.credentials...)
}
