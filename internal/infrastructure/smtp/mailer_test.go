package smtp

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer accepts one connection, speaks just enough SMTP for
// net/smtp and sends the DATA payload on the returned channel. A non-nil
// serverTLS makes it advertise STARTTLS and upgrade on request.
func fakeSMTPServer(t *testing.T, serverTLS *tls.Config) (host, port string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			return
		}
		var conn net.Conn = raw
		defer func() { _ = conn.Close() }()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s)) }
		upgraded := false
		write("220 localhost ESMTP\r\n")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				if serverTLS != nil && !upgraded {
					write("250-localhost\r\n250-STARTTLS\r\n250 OK\r\n")
				} else {
					write("250-localhost\r\n250 OK\r\n")
				}
			case cmd == "STARTTLS" && serverTLS != nil:
				write("220 ready to start TLS\r\n")
				tc := tls.Server(raw, serverTLS)
				if err := tc.Handshake(); err != nil {
					return
				}
				conn = tc
				r = bufio.NewReader(conn)
				upgraded = true
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK\r\n")
			case cmd == "DATA":
				write("354 go ahead\r\n")
				var sb strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					sb.WriteString(l)
				}
				out <- sb.String()
				write("250 queued\r\n")
			case cmd == "QUIT":
				write("221 bye\r\n")
				return
			default:
				write("502 not implemented\r\n")
			}
		}
	}()

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return h, p, out
}

// testCertificate borrows httptest's loopback certificate for the fake server
// and returns a client pool that trusts it.
func testCertificate(t *testing.T) (*tls.Config, *x509.CertPool) {
	t.Helper()
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return &tls.Config{Certificates: srv.TLS.Certificates}, pool
}

func TestSendOTPEmail_DeliversCode(t *testing.T) {
	host, port, data := fakeSMTPServer(t, nil)
	m := &Mailer{host: host, port: port, from: "noreply@example.com", dial: (&net.Dialer{}).DialContext}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.SendOTPEmail(ctx, "user@x.com", "012345", "LOGIN"))

	select {
	case msg := <-data:
		assert.Contains(t, msg, "To: user@x.com")
		assert.Contains(t, msg, "Subject: Your login code")
		assert.Contains(t, msg, "012345")
	case <-time.After(5 * time.Second):
		t.Fatal("server never received DATA")
	}
}

func TestSendEmail_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	m := &Mailer{host: "127.0.0.1", port: port, dial: (&net.Dialer{}).DialContext}
	err = m.SendEmail(context.Background(), "user@x.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}

func TestSendOTPEmail_UpgradesWithStartTLS(t *testing.T) {
	serverTLS, roots := testCertificate(t)
	host, port, data := fakeSMTPServer(t, serverTLS)
	m := &Mailer{
		host: host,
		port: port,
		from: "noreply@example.com",
		dial: (&net.Dialer{}).DialContext,
		tls:  &tls.Config{RootCAs: roots},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.SendOTPEmail(ctx, "user@x.com", "654321", "LOGIN"))

	select {
	case msg := <-data:
		assert.Contains(t, msg, "654321")
	case <-time.After(5 * time.Second):
		t.Fatal("server never received DATA")
	}
}

func TestTLSConfig_SetsServerName(t *testing.T) {
	m := &Mailer{host: "smtp.example.com"}
	assert.Equal(t, "smtp.example.com", m.tlsConfig().ServerName)

	m.tls = &tls.Config{ServerName: "relay.example.com"}
	assert.Equal(t, "relay.example.com", m.tlsConfig().ServerName)
}
