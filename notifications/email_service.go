package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type Message struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BrevoMailer sends transactional email through the Brevo HTTP API.
type BrevoMailer struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	Client      *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func NewBrevoMailer(apiKey, senderEmail, senderName string) *BrevoMailer {
	return &BrevoMailer{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" || !strings.Contains(msg.ToEmail, "@") {
		return fmt.Errorf("invalid recipient email: %q", msg.ToEmail)
	}

	recipientName := msg.ToName
	if recipientName == "" {
		recipientName = msg.ToEmail[:strings.Index(msg.ToEmail, "@")]
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": msg.ToEmail, "name": recipientName}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// LogMailer is used when no email provider is configured: it logs instead of sending.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Log.WithFields(logrus.Fields{
		"to":      msg.ToEmail,
		"subject": msg.Subject,
	}).Warn("email service not configured, message not sent")
	m.Log.WithField("to", msg.ToEmail).Debug(msg.HTML)
	return nil
}

// New picks the Brevo mailer when credentials are present.
func New(apiKey, senderEmail, senderName string, log logrus.FieldLogger) Mailer {
	if apiKey == "" || senderEmail == "" {
		log.Warn("email service not configured: BREVO_API_KEY or EMAIL_SENDER missing")
		return LogMailer{Log: log}
	}
	return NewBrevoMailer(apiKey, senderEmail, senderName)
}
