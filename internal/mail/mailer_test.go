package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Settings{Enabled: true})
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("expected host validation error, got %v", err)
	}

	_, err = New(Settings{Enabled: true, Host: "smtp.example.com"})
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Fatalf("expected port validation error, got %v", err)
	}

	m, err := New(Settings{Enabled: false})
	if err != nil || m == nil {
		t.Fatalf("disabled configuration must succeed: %v", err)
	}
}

func TestSendDisabled(t *testing.T) {
	m, err := New(Settings{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Enabled() {
		t.Fatal("disabled transport reports Enabled")
	}
	err = m.Send(context.Background(), Email{To: "test@example.com", Subject: "t", Text: "b"})
	if err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestDefaultTimeout(t *testing.T) {
	m, err := New(Settings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sm, ok := m.(*smtpMailer)
	if !ok {
		t.Fatal("expected smtpMailer type")
	}
	if sm.cfg.Timeout != 10*time.Second {
		t.Fatalf("expected 10s default timeout, got %v", sm.cfg.Timeout)
	}
}

func TestSendValidatesAddresses(t *testing.T) {
	m, _ := New(Settings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})

	err := m.Send(context.Background(), Email{To: "  ", Subject: "s"})
	if err == nil || !strings.Contains(err.Error(), "recipient address is required") {
		t.Fatalf("expected missing recipient error, got %v", err)
	}

	err = m.Send(context.Background(), Email{To: "bad-address", Subject: "s"})
	if err == nil || !strings.Contains(err.Error(), "invalid recipient address") {
		t.Fatalf("expected invalid recipient error, got %v", err)
	}

	m2, _ := New(Settings{Enabled: true, Host: "smtp.example.com", Port: 587})
	err = m2.Send(context.Background(), Email{From: "invalid-from", To: "user@example.com"})
	if err == nil || !strings.Contains(err.Error(), "invalid from address") {
		t.Fatalf("expected invalid from error, got %v", err)
	}
}

// fakeClient records the SMTP conversation without a network.
type fakeClient struct {
	mailFrom string
	rcptTo   []string
	data     bytes.Buffer
	quit     bool

	rcptErr error
}

func (f *fakeClient) Mail(from string) error { f.mailFrom = from; return nil }
func (f *fakeClient) Rcpt(to string) error {
	if f.rcptErr != nil {
		return f.rcptErr
	}
	f.rcptTo = append(f.rcptTo, to)
	return nil
}
func (f *fakeClient) Data() (io.WriteCloser, error) { return nopWriteCloser{&f.data}, nil }
func (f *fakeClient) Quit() error                        { f.quit = true; return nil }
func (f *fakeClient) Close() error                       { return nil }
func (f *fakeClient) StartTLS(*tls.Config) error         { return nil }
func (f *fakeClient) Auth(smtp.Auth) error               { return nil }
func (f *fakeClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newFakeMailer(cfg Settings, client *fakeClient) *smtpMailer {
	return &smtpMailer{
		cfg: cfg,
		dialFn: func(ctx context.Context, cfg Settings) (net.Conn, smtpClient, error) {
			server, conn := net.Pipe()
			_ = server.Close()
			return conn, client, nil
		},
		authFn: func(smtpClient, Settings) error { return nil },
	}
}

func TestSendWritesMultipartMessage(t *testing.T) {
	client := &fakeClient{}
	m := newFakeMailer(Settings{Enabled: true, Host: "h", Port: 25, From: "switch@example.com", ReplyTo: "owner@example.com"}, client)

	err := m.Send(context.Background(), Email{
		To:      "ada@example.com",
		Subject: "Switch Triggered",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
		Stream:  "switch-alerts",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if client.mailFrom != "switch@example.com" {
		t.Fatalf("MAIL FROM = %q", client.mailFrom)
	}
	if len(client.rcptTo) != 1 || client.rcptTo[0] != "ada@example.com" {
		t.Fatalf("RCPT TO = %v", client.rcptTo)
	}
	if !client.quit {
		t.Fatal("QUIT not issued")
	}

	body := client.data.String()
	for _, want := range []string{
		"Reply-To: owner@example.com",
		"X-Delivery-Stream: switch-alerts",
		"multipart/alternative",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q:\n%s", want, body)
		}
	}
}

func TestSendMapsProtocolErrorToSendError(t *testing.T) {
	client := &fakeClient{rcptErr: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}}
	m := newFakeMailer(Settings{Enabled: true, Host: "h", Port: 25, From: "switch@example.com"}, client)

	err := m.Send(context.Background(), Email{To: "gone@example.com", Subject: "s", Text: "b"})
	se, ok := err.(*SendError)
	if !ok {
		t.Fatalf("expected *SendError, got %T: %v", err, err)
	}
	if se.Code != 550 || !strings.Contains(se.Msg, "mailbox unavailable") {
		t.Fatalf("unexpected SendError: %+v", se)
	}
}

func TestFormatTextOnly(t *testing.T) {
	content := format("from@example.com", "to@example.com", "", Email{Subject: "Subject\r\nBreak", Text: "Body"})
	if !strings.Contains(content, "From: from@example.com") {
		t.Fatalf("expected from header, got %q", content)
	}
	if strings.Contains(content, "multipart") {
		t.Fatalf("text-only message must not be multipart: %q", content)
	}
	if !strings.HasSuffix(content, "Body") {
		t.Fatalf("expected body suffix, got %q", content)
	}
	if strings.Contains(content, "Subject\r\nBreak") {
		t.Fatalf("header injection not sanitised: %q", content)
	}
}
