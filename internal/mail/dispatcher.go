package mail

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const DefaultTimeout = 10 * time.Second

// AttachmentSource resolves attachment keys to file contents. *s3.Storage
// from gofiber/storage satisfies it.
type AttachmentSource interface {
	Get(key string) ([]byte, error)
}

// Dispatcher delivers mail in the background. Callers never wait on delivery
// and never see its errors; failures are logged.
type Dispatcher struct {
	mailer      Mailer
	attachments AttachmentSource
	timeout     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(mailer Mailer, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		mailer:  mailer,
		timeout: timeout,
	}
}

// WithAttachments sets the source for Email.AttachmentKeys.
func (d *Dispatcher) WithAttachments(src AttachmentSource) *Dispatcher {
	d.attachments = src
	return d
}

// Dispatch queues e for delivery and returns immediately.
func (d *Dispatcher) Dispatch(e *Email) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warnw("mail: dispatcher closed, dropping message", "template", e.Template, "to", e.To)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.deliver(ctx, e)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, e *Email) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("mail: delivery panicked", "template", e.Template, "panic", r)
		}
	}()

	e.Attachments = append(e.Attachments, d.resolve(e.AttachmentKeys)...)

	if err := d.mailer.Send(ctx, e); err != nil {
		log.Errorw("mail: failed to send email notification", "template", e.Template, "to", e.To, "error", err)
		return
	}

	log.Debugw("mail: sent", "template", e.Template, "to", e.To)
}

func (d *Dispatcher) resolve(keys []string) []Attachment {
	if len(keys) == 0 {
		return nil
	}
	if d.attachments == nil {
		log.Warnw("mail: attachments requested without a source", "keys", keys)
		return nil
	}

	out := make([]Attachment, 0, len(keys))
	for _, key := range keys {
		content, err := d.attachments.Get(key)
		if err != nil {
			log.Warnw("mail: failed to load attachment", "key", key, "error", err)
			continue
		}
		if content == nil {
			log.Warnw("mail: attachment not found", "key", key)
			continue
		}
		out = append(out, Attachment{Filename: path.Base(key), Content: content})
	}
	return out
}

// Close stops accepting mail and waits for pending deliveries, or until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
