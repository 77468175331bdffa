// Package mail implements the outbound email transport over SMTP.
//
// The transport accepts one fully rendered message per recipient and reports
// per-send success or failure; queueing and retries are the caller's concern.
// Dial and auth are injectable seams so the delivery path is testable without
// a live SMTP server.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/afoster/go-switch-backend/internal/sysutil"
)

// ErrDisabled signals that SMTP delivery is disabled via configuration.
var ErrDisabled = errors.New("smtp: delivery disabled")

// Email is one outbound message addressed to a single recipient.
// Text and HTML are alternative renderings of the same content; when both are
// present the message is sent as multipart/alternative.
type Email struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	// Stream names the delivery category (e.g. "switch-alerts") carried in
	// the X-Delivery-Stream header for downstream filtering.
	Stream string
}

// SendError is a delivery failure with an optional machine-readable SMTP code.
type SendError struct {
	Code int
	Msg  string
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("smtp: %d %s", e.Code, e.Msg)
	}
	return "smtp: " + e.Msg
}

// Mailer defines behaviour for sending email messages. Enabled lets callers
// that require a working transport (the evaluator treats a disabled one as a
// fatal precondition) check before attempting any sends.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
	Enabled() bool
}

// Settings capture the runtime configuration required by the SMTP mailer.
type Settings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ReplyTo  string
	UseTLS   bool
	Timeout  time.Duration
}

type smtpClient interface {
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
	StartTLS(*tls.Config) error
	Auth(smtp.Auth) error
	Extension(string) (bool, string)
}

type dialFunc func(ctx context.Context, cfg Settings) (net.Conn, smtpClient, error)
type authFunc func(client smtpClient, cfg Settings) error

type smtpMailer struct {
	cfg    Settings
	dialFn dialFunc
	authFn authFunc
}

// New constructs an SMTP-backed Mailer from the given settings.
func New(cfg Settings) (Mailer, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{
		cfg:    cfg,
		dialFn: defaultDial,
		authFn: defaultAuth,
	}, nil
}

func validate(cfg Settings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New("smtp: host is required when enabled")
	}
	if cfg.Port == 0 {
		return errors.New("smtp: port is required when enabled")
	}
	return nil
}

// Enabled reports whether delivery is configured on.
func (m *smtpMailer) Enabled() bool { return m.cfg.Enabled }

func (m *smtpMailer) Send(ctx context.Context, msg Email) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return &SendError{Msg: "sender address is required"}
	}
	if _, err := netmail.ParseAddress(from); err != nil {
		return &SendError{Msg: fmt.Sprintf("invalid from address: %v", err)}
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return &SendError{Msg: "recipient address is required"}
	}
	if _, err := netmail.ParseAddress(to); err != nil {
		return &SendError{Msg: fmt.Sprintf("invalid recipient address %q: %v", to, err)}
	}

	conn, client, err := m.dialFn(ctx, m.cfg)
	if err != nil {
		return asSendError(err)
	}
	defer conn.Close()
	defer client.Close()

	if err := m.authFn(client, m.cfg); err != nil {
		return asSendError(err)
	}

	if err := client.Mail(from); err != nil {
		return asSendError(fmt.Errorf("mail from: %w", err))
	}
	if err := client.Rcpt(to); err != nil {
		return asSendError(fmt.Errorf("rcpt to %s: %w", to, err))
	}

	wc, err := client.Data()
	if err != nil {
		return asSendError(fmt.Errorf("data command: %w", err))
	}
	if _, err := io.WriteString(wc, format(from, to, m.replyTo(msg), msg)); err != nil {
		_ = wc.Close()
		return asSendError(fmt.Errorf("write body: %w", err))
	}
	if err := wc.Close(); err != nil {
		return asSendError(fmt.Errorf("close data writer: %w", err))
	}

	return client.Quit()
}

func (m *smtpMailer) replyTo(msg Email) string {
	return sysutil.FirstNonEmpty(msg.ReplyTo, m.cfg.ReplyTo)
}

// asSendError maps SMTP protocol errors to SendError, preserving the
// machine-readable reply code when the server provided one.
func asSendError(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return &SendError{Code: proto.Code, Msg: proto.Msg}
	}
	return &SendError{Msg: err.Error()}
}

func defaultDial(ctx context.Context, cfg Settings) (net.Conn, smtpClient, error) {
	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)

	if cfg.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", address, &tls.Config{ServerName: cfg.Host})
	} else if ctx != nil {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.Dial("tcp", address)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("smtp: dial %s: %w", address, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp: new client: %w", err)
	}

	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				_ = client.Close()
				_ = conn.Close()
				return nil, nil, fmt.Errorf("smtp: start tls: %w", err)
			}
		}
	}

	return conn, &realSMTPClient{Client: client}, nil
}

func defaultAuth(client smtpClient, cfg Settings) error {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil
	}
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp: auth: %w", err)
	}
	return nil
}

type realSMTPClient struct {
	*smtp.Client
}

const altBoundary = "=_switch_alt_boundary"

// format assembles the RFC 5322 message. Both renderings are always produced
// by the composer, so the multipart/alternative shape is the common case;
// a text-only message falls back to a single text/plain part.
func format(from, to, replyTo string, msg Email) string {
	var b strings.Builder

	write := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	write("From", from)
	write("To", to)
	if replyTo != "" {
		write("Reply-To", replyTo)
	}
	write("Subject", mime.QEncoding.Encode("utf-8", escapeHeader(msg.Subject)))
	if msg.Stream != "" {
		write("X-Delivery-Stream", escapeHeader(msg.Stream))
	}
	write("MIME-Version", "1.0")

	if strings.TrimSpace(msg.HTML) == "" {
		write("Content-Type", "text/plain; charset=UTF-8")
		b.WriteString("\r\n")
		b.WriteString(msg.Text)
		return b.String()
	}

	write("Content-Type", `multipart/alternative; boundary="`+altBoundary+`"`)
	b.WriteString("\r\n")

	b.WriteString("--" + altBoundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")

	b.WriteString("--" + altBoundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	b.WriteString("--" + altBoundary + "--\r\n")
	return b.String()
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
