// Package mailer sends transactional email through the configured
// provider's HTTP API.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"p9e.in/fixport/models"
	"p9e.in/fixport/utils"
)

// WorkOrderRecord is the payload the dispatcher receives when a work
// order is created (also the shape of the notification webhook body).
type WorkOrderRecord struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Business       string `json:"business"`
	Priority       string `json:"priority"`
	SubmitterName  string `json:"submitter_name"`
	SubmitterEmail string `json:"submitter_email"`
	CreatedAt      string `json:"created_at"`
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer wraps the provider API client. Construction does not validate
// credentials; each send checks its own prerequisites so a missing key
// surfaces as a configuration error on the call, not a crash at boot
// of unrelated paths.
type Mailer struct {
	client *resty.Client
	apiKey string
	from   string
	to     string
	logger *zap.Logger
}

func New(apiURL, apiKey, from, to string, logger *zap.Logger) *Mailer {
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Mailer{client: client, apiKey: apiKey, from: from, to: to, logger: logger}
}

// SendWorkOrderNotification emails the facilities inbox about a new
// request. A missing title is the caller's fault (ErrValidation);
// missing credentials are ours (ErrConfig); a provider non-2xx comes
// back as ErrUpstream with the response body attached.
func (m *Mailer) SendWorkOrderNotification(ctx context.Context, rec WorkOrderRecord) error {
	if strings.TrimSpace(rec.Title) == "" {
		return fmt.Errorf("%w: record title is required", models.ErrValidation)
	}
	if m.apiKey == "" || m.from == "" {
		return fmt.Errorf("%w: mail API key and sender address are required", models.ErrConfig)
	}

	subject := "New work order: " + utils.EscapeHTML(rec.Title)
	body := buildWorkOrderBody(rec)

	return m.send(ctx, emailRequest{
		From:    m.from,
		To:      []string{m.to},
		Subject: subject,
		HTML:    body,
	})
}

// SendMagicLink emails a one-time sign-in link.
func (m *Mailer) SendMagicLink(ctx context.Context, toEmail, link string) error {
	if m.apiKey == "" || m.from == "" {
		return fmt.Errorf("%w: mail API key and sender address are required", models.ErrConfig)
	}
	// the link sits inside an attribute, so quotes must be neutralized
	// on top of the usual escape set
	safe := strings.ReplaceAll(utils.EscapeHTML(link), `"`, "&quot;")
	body := fmt.Sprintf(
		`<p>Click the link below to sign in. It can be used once and expires in 15 minutes.</p><p><a href="%s">%s</a></p>`,
		safe, safe)
	return m.send(ctx, emailRequest{
		From:    m.from,
		To:      []string{toEmail},
		Subject: "Your sign-in link",
		HTML:    body,
	})
}

func (m *Mailer) send(ctx context.Context, req emailRequest) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(m.apiKey).
		SetBody(req).
		Post("")
	if err != nil {
		return fmt.Errorf("mail provider: %w: %v", models.ErrUpstream, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail provider returned %d: %w: %s",
			resp.StatusCode(), models.ErrUpstream, resp.String())
	}
	m.logger.Info("email dispatched", zap.String("subject", req.Subject))
	return nil
}

// buildWorkOrderBody interpolates the record into HTML. Every
// user-supplied field is escaped first; the timestamp is reformatted
// for humans and defaults to now when absent or unparsable.
func buildWorkOrderBody(rec WorkOrderRecord) string {
	created := time.Now()
	if rec.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
			created = t
		}
	}

	var b strings.Builder
	b.WriteString("<h2>New maintenance request</h2>")
	fmt.Fprintf(&b, "<p><strong>Title:</strong> %s</p>", utils.EscapeHTML(rec.Title))
	if rec.Description != "" {
		fmt.Fprintf(&b, "<p><strong>Details:</strong> %s</p>", utils.EscapeHTML(rec.Description))
	}
	if rec.Business != "" {
		fmt.Fprintf(&b, "<p><strong>Business:</strong> %s</p>", utils.EscapeHTML(rec.Business))
	}
	if rec.Priority != "" {
		fmt.Fprintf(&b, "<p><strong>Priority:</strong> %s</p>", utils.EscapeHTML(rec.Priority))
	}
	if rec.SubmitterName != "" || rec.SubmitterEmail != "" {
		fmt.Fprintf(&b, "<p><strong>Submitted by:</strong> %s (%s)</p>",
			utils.EscapeHTML(rec.SubmitterName), utils.EscapeHTML(rec.SubmitterEmail))
	}
	fmt.Fprintf(&b, "<p><strong>Submitted at:</strong> %s</p>", created.Format("Jan 2, 2006 3:04 PM MST"))
	return b.String()
}
