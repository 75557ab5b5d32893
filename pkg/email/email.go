package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"notes-api/internal/config"

	"github.com/charmbracelet/log"
	mail "github.com/xhit/go-simple-mail/v2"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

type WelcomeEmailData struct {
	Username string
	Email    string
	AppName  string
	AppURL   string
}

// Sender delivers the welcome email to a newly registered user.
type Sender interface {
	SendWelcomeEmail(data WelcomeEmailData) error
}

type EmailService struct {
	enabled  bool
	host     string
	port     int
	username string
	password string
	from     string
	useTLS   bool
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		enabled:  cfg.SMTPEnabled,
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		useTLS:   cfg.SMTPUseTLS,
	}
}

func (es *EmailService) SendWelcomeEmail(data WelcomeEmailData) error {
	if !es.enabled {
		log.Debug("Email is disabled, skipping welcome email", "to", data.Email)
		return nil
	}

	htmlBody, textBody, err := RenderWelcome(data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Welcome to %s!", data.AppName)
	return es.send(data.Email, subject, htmlBody, textBody)
}

// SendWelcomeAsync sends the welcome email in the background; failures are only logged.
func SendWelcomeAsync(sender Sender, data WelcomeEmailData) {
	if sender == nil {
		return
	}
	go func() {
		if err := sender.SendWelcomeEmail(data); err != nil {
			log.Error("Failed to send welcome email", "to", data.Email, "error", err)
		}
	}()
}

// RenderWelcome returns the HTML and plain text bodies of the welcome email.
func RenderWelcome(data WelcomeEmailData) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBuf, "welcome.html", data); err != nil {
		return "", "", fmt.Errorf("failed to render welcome email: %w", err)
	}
	if err := textTemplates.ExecuteTemplate(&textBuf, "welcome.txt", data); err != nil {
		return "", "", fmt.Errorf("failed to render welcome email: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

func (es *EmailService) send(to, subject, htmlBody, textBody string) error {
	server := mail.NewSMTPClient()
	server.Host = es.host
	server.Port = es.port
	server.Username = es.username
	server.Password = es.password
	if es.useTLS {
		server.Encryption = mail.EncryptionSTARTTLS
	} else {
		server.Encryption = mail.EncryptionNone
	}
	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	msg := mail.NewMSG()
	msg.SetFrom(es.from).
		AddTo(to).
		SetSubject(subject)
	msg.SetBody(mail.TextHTML, htmlBody)
	msg.AddAlternative(mail.TextPlain, textBody)
	if msg.Error != nil {
		return fmt.Errorf("failed to build email: %w", msg.Error)
	}

	if err := msg.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Welcome email sent", "to", to)
	return nil
}
