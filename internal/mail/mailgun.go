package mail

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"
)

type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
}

func NewMailer(domain, apiKey, apiBase string) *Mailgun {
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: apiBase,
	}
}

func (m *Mailgun) client() *mailgun.MailgunImpl {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}
	return mg
}

// Send delivers e as a templated message when e.Template is set, and as a
// plain text message otherwise.
func (m *Mailgun) Send(ctx context.Context, e *Email) error {
	if e.Template != "" {
		return m.SendTemplatedMail(ctx, e)
	}
	return m.SendMail(ctx, e)
}

func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	mg := m.client()
	message := mg.NewMessage(e.From, e.Subject, e.Body, e.To...)
	addAttachments(message, e.Attachments)

	_, _, err := mg.Send(ctx, message)
	return err
}

func (m *Mailgun) SendTemplatedMail(ctx context.Context, e *Email) error {
	mg := m.client()
	message := mg.NewMessage(e.From, e.Subject, "", e.To...)
	message.SetTemplate(e.Template)

	for k, v := range e.TemplateVars {
		if err := message.AddTemplateVariable(k, v); err != nil {
			return err
		}
	}
	addAttachments(message, e.Attachments)

	_, _, err := mg.Send(ctx, message)
	return err
}

func addAttachments(message *mailgun.Message, attachments []Attachment) {
	for _, a := range attachments {
		message.AddBufferAttachment(a.Filename, a.Content)
	}
}
