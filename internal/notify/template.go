// Package notify renders switch messages into per-recipient notifications.
//
// The vocabulary of personalization tokens is small and closed, so rendering
// is plain string replacement against a lookup of the two supported tokens;
// no general templating engine is involved. Rendering is a pure
// transformation: it never touches the database or the mail transport.
package notify

import (
	"html"
	"strings"
)

// Personalization tokens recognized in message subjects and bodies.
const (
	TokenName      = "{recipient_name}"
	TokenFirstName = "{recipient_first_name}"

	// DefaultSubject is used when a message subject is blank after trimming.
	DefaultSubject = "Switch Triggered"

	// fallbackName replaces name tokens when the recipient name is empty.
	fallbackName = "Recipient"
)

// Rendered is the fully personalized content for one recipient, in both
// plaintext (literal line breaks preserved) and HTML (escaped, newlines as
// <br>) so the transport can send a multipart message.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// FirstName returns the first whitespace-delimited token of a full name,
// falling back to "Recipient" when the name is blank.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return fallbackName
	}
	return fields[0]
}

// Render substitutes the personalization tokens in subject and body for the
// given recipient name and produces the final subject plus both renderings.
func Render(subject, body, recipientName string) Rendered {
	full := strings.TrimSpace(recipientName)
	if full == "" {
		full = fallbackName
	}
	first := FirstName(recipientName)

	replacer := strings.NewReplacer(
		TokenName, full,
		TokenFirstName, first,
	)

	subject = strings.TrimSpace(replacer.Replace(subject))
	if subject == "" {
		subject = DefaultSubject
	}
	text := replacer.Replace(body)

	return Rendered{
		Subject: subject,
		Text:    text,
		HTML:    htmlBody(text),
	}
}

// htmlBody escapes the plaintext rendering and converts newlines to <br>
// so line structure survives in HTML mail clients.
func htmlBody(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>\n")
}
