// Package notify delivers the verification and password reset mails.
//
// Mailer renders the message and hands it to a Sender: PostmarkSender in
// production, LogSender when no mail provider is configured.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
)

const (
	VerificationSubject  = "¡Bienvenido a ApiBaseCore! Confirma tu email"
	PasswordResetSubject = "Restablece tu contraseña de ApiBaseCore"

	TagVerification  = "email-verification"
	TagPasswordReset = "password-reset"
)

var ErrFailedToSend = errors.New("failed to send email")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Notifier is what the authentication flows call. Delivery errors are
// returned so the caller can log them; they never affect the flow outcome.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, link string) error
	SendPasswordResetEmail(ctx context.Context, to, name, link string) error
}

// Message is a rendered mail ready for a Sender.
type Message struct {
	To       string
	Subject  string
	Tag      string
	HTMLBody string
	Link     string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Mailer struct {
	sender Sender
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	return m.send(ctx, "verification.html", VerificationSubject, TagVerification, to, name, link)
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, name, link string) error {
	return m.send(ctx, "password_reset.html", PasswordResetSubject, TagPasswordReset, to, name, link)
}

func (m *Mailer) send(ctx context.Context, tmpl, subject, tag, to, name, link string) error {
	if to == "" {
		return fmt.Errorf("%w: empty recipient", ErrFailedToSend)
	}

	var body bytes.Buffer
	data := struct {
		UserName string
		Link     template.URL
	}{UserName: name, Link: template.URL(link)}

	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	return m.sender.Send(ctx, Message{
		To:       to,
		Subject:  subject,
		Tag:      tag,
		HTMLBody: body.String(),
		Link:     link,
	})
}
