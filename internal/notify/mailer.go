// Package notify delivers copies of persisted notifications outside the
// application, currently by e-mail.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/taskboard/internal/model"
)

// Deliverer sends a notification that has already been stored.
type Deliverer interface {
	Deliver(ctx context.Context, to model.User, n model.Notification) error
}

// dialTimeout bounds connecting to the SMTP server.
const dialTimeout = 10 * time.Second

// sendFunc hands a composed message to the transport.
type sendFunc func(ctx context.Context, from, to string, msg []byte) error

// Mailer delivers notifications as plain-text e-mail over SMTP.
type Mailer struct {
	cfg      model.MailConfig
	password string
	send     sendFunc
}

var _ Deliverer = (*Mailer)(nil)

// NewMailer creates a Mailer for the given settings. password may be empty
// for servers that accept unauthenticated relay.
func NewMailer(cfg model.MailConfig, password string) *Mailer {
	m := &Mailer{cfg: cfg, password: password}
	m.send = m.sendSMTP
	return m
}

// Deliver composes and sends n to the recipient. Recipients without an
// e-mail address are skipped.
func (m *Mailer) Deliver(ctx context.Context, to model.User, n model.Notification) error {
	if strings.TrimSpace(to.Email) == "" {
		return nil
	}

	msg, err := m.Compose(to, n)
	if err != nil {
		return err
	}

	if err := m.send(ctx, m.cfg.From, to.Email, msg); err != nil {
		return fmt.Errorf("sending notification %d to %s: %w", n.ID, to.Email, err)
	}
	log.Printf("[notify] mailed notification %d to %s", n.ID, to.Email)
	return nil
}

// Compose renders n as an RFC 5322 message with a UTF-8 plain-text body.
func (m *Mailer) Compose(to model.User, n model.Notification) ([]byte, error) {
	var h mail.Header
	date := n.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: "Taskboard", Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Name: to.FullName(), Address: to.Email}})
	h.SetSubject(n.Message)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}
	if _, err := io.WriteString(w, m.body(n)); err != nil {
		return nil, fmt.Errorf("writing mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing mail body: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Mailer) body(n model.Notification) string {
	var b strings.Builder
	b.WriteString(n.Message)
	b.WriteString("\r\n")
	if n.TaskID != nil && m.cfg.BaseURL != "" {
		fmt.Fprintf(&b, "\r\n%s/task/%d/\r\n", strings.TrimRight(m.cfg.BaseURL, "/"), *n.TaskID)
	}
	return b.String()
}

// sendSMTP dials the configured server, upgrades the connection when
// possible, authenticates and sends one message. The connection inherits
// ctx's deadline.
func (m *Mailer) sendSMTP(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if m.cfg.TLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("setting deadline: %w", err)
		}
	}

	client := smtp.NewClient(conn)
	defer client.Close()

	if !m.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}

	if m.cfg.Username != "" {
		if err := client.Auth(sasl.NewPlainClient("", m.cfg.Username, m.password)); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.SendMail(from, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("SMTP send: %w", err)
	}
	return client.Quit()
}
