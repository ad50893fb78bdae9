// Package email sends change summaries to the office mailbox over SMTP with
// STARTTLS.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
)

const (
	defaultSubject = "Aviso do Sistema Automatizado"
	dialTimeout    = 30 * time.Second
)

// Sender delivers one message. Split out so tests can swap the SMTP
// transport.
type Sender interface {
	Send(subject, body string) error
}

// Sink emails a summary of the applied changes.
type Sink struct {
	sender Sender
	log    *logger.Logger
}

// New builds an email sink delivering through SMTP.
func New(host string, port int, from, password string, recipients []string) *Sink {
	return &Sink{
		sender: &smtpSender{
			host:       host,
			port:       port,
			from:       from,
			password:   password,
			recipients: recipients,
		},
		log: logger.Default(),
	}
}

// WithSender overrides the delivery transport.
func (s *Sink) WithSender(sender Sender) *Sink {
	s.sender = sender
	return s
}

// WithLogger overrides the sink's logger.
func (s *Sink) WithLogger(log *logger.Logger) *Sink {
	s.log = log
	return s
}

func (s *Sink) Name() string { return "email" }

// Apply sends one summary email covering the whole change set. Nothing is
// sent when the set is empty.
func (s *Sink) Apply(_ context.Context, changes *hearing.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	subject := fmt.Sprintf("%s: %d audiências alteradas", defaultSubject,
		len(changes.Added)+len(changes.Modified)+len(changes.Removed))
	body := FormatSummary(changes)
	if err := s.sender.Send(subject, body); err != nil {
		return fmt.Errorf("sending summary email: %w", err)
	}
	s.log.Info("Summary email sent", logger.Fields{"subject": subject})
	return nil
}

// Notice sends an operational message outside the regular change summary,
// such as a failed run.
func (s *Sink) Notice(subject, body string) error {
	if err := s.sender.Send(subject, body); err != nil {
		return fmt.Errorf("sending notice: %w", err)
	}
	return nil
}

// FormatSummary renders the change set as a plain-text email body.
func FormatSummary(changes *hearing.ChangeSet) string {
	var b strings.Builder

	if len(changes.Added) > 0 {
		fmt.Fprintf(&b, "Novas audiências (%d):\n", len(changes.Added))
		for _, rec := range changes.Added {
			writeLine(&b, rec)
		}
		b.WriteString("\n")
	}
	if len(changes.Modified) > 0 {
		fmt.Fprintf(&b, "Audiências alteradas (%d):\n", len(changes.Modified))
		for _, ch := range changes.Modified {
			writeLine(&b, ch.Current)
			if ch.Previous.Status != ch.Current.Status {
				fmt.Fprintf(&b, "    status anterior: %s\n", ch.Previous.Status)
			}
		}
		b.WriteString("\n")
	}
	if len(changes.Removed) > 0 {
		fmt.Fprintf(&b, "Audiências removidas da pauta (%d):\n", len(changes.Removed))
		for _, rec := range changes.Removed {
			writeLine(&b, rec)
		}
		b.WriteString("\n")
	}

	b.WriteString("Favor comunicar os clientes afetados.\n")
	return b.String()
}

func writeLine(b *strings.Builder, rec hearing.Record) {
	fmt.Fprintf(b, "  - [%s] %s %s às %s - %s x %s (%s)\n",
		rec.SystemID, rec.ProcessNumber, rec.Date, rec.Time,
		rec.Claimant, rec.Respondent, rec.Status)
}

// smtpSender delivers through a STARTTLS SMTP session, the way Gmail's
// submission port expects.
type smtpSender struct {
	host       string
	port       int
	from       string
	password   string
	recipients []string
}

func (s *smtpSender) Send(subject, body string) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("starting smtp session: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
		return fmt.Errorf("starting tls: %w", err)
	}
	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	for _, rcpt := range s.recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("adding recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening message body: %w", err)
	}
	msg := buildMessage(s.from, s.recipients, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return client.Quit()
}

func buildMessage(from string, recipients []string, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
