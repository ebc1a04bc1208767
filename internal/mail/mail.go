package mail

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

type Email struct {
	Subject      string
	Body         string
	From         string
	To           []string
	Template     string
	TemplateVars map[string]any
	// AttachmentKeys name objects in the attachment source. Missing objects
	// are skipped.
	AttachmentKeys []string
	Attachments    []Attachment
}

type Attachment struct {
	Filename string
	Content  []byte
}

type Mailer interface {
	Send(ctx context.Context, e *Email) error
}

// LogMailer writes outgoing mail to the log instead of delivering it. Template
// variables are not logged since they can carry credentials.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, e *Email) error {
	log.Infow("mail: delivery disabled, dropping message",
		"to", e.To,
		"subject", e.Subject,
		"template", e.Template,
		"attachments", len(e.Attachments),
	)
	return nil
}
