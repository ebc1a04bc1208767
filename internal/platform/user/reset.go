package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"accounts/internal/database"
	"accounts/internal/mail"
	"accounts/pkg/utils"
)

const (
	DefaultResetTTL = time.Hour

	resetTokenBytes = 32
	resetTemplate   = "resetpassword"
)

type ResetOptions struct {
	// PublicURL is the externally reachable base the reset link is built on.
	PublicURL string
	MailFrom  string
	TTL       time.Duration
}

// ResetWorkflow runs the forgot-password flow. The token mailed to the user
// is never stored; accounts only hold its digest.
type ResetWorkflow struct {
	store    database.Store
	hasher   PasswordHasher
	notifier Notifier
	opts     ResetOptions
	now      func() time.Time
}

func NewResetWorkflow(store database.Store, hasher PasswordHasher, notifier Notifier, opts ResetOptions) *ResetWorkflow {
	if opts.TTL <= 0 {
		opts.TTL = DefaultResetTTL
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	return &ResetWorkflow{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock returns a copy of the workflow reading time from now.
func (w *ResetWorkflow) WithClock(now func() time.Time) *ResetWorkflow {
	cp := *w
	cp.now = now
	return &cp
}

// ResetLink is the page a token is redeemed from.
func (w *ResetWorkflow) ResetLink(token string) string {
	return w.opts.PublicURL + "/resetpassword/" + token
}

// Start issues a reset token for the active account matching handle and
// mails the link. Unknown and inactive handles succeed without doing
// anything, so callers cannot tell them apart.
func (w *ResetWorkflow) Start(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ErrMissingFields
	}

	account, err := w.store.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Debugw("user service: reset requested for unknown handle")
			return nil
		}
		return storeError("start reset", err)
	}
	if !account.IsActive {
		log.Debugw("user service: reset requested for inactive account", "user_id", account.ID)
		return nil
	}

	token, err := utils.GenerateToken(resetTokenBytes)
	if err != nil {
		return err
	}

	now := w.now()
	state := database.ResetState{
		RequestedAt: now,
		Token:       utils.Digest(token),
		ExpiresAt:   now.Add(w.opts.TTL),
	}
	if err := w.store.SetResetState(ctx, account.ID, state); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return storeError("start reset", err)
	}

	log.Infow("user service: reset requested", "user_id", account.ID, "expires_at", state.ExpiresAt)

	w.notifier.Dispatch(&mail.Email{
		Subject:  "Reset your password",
		From:     w.opts.MailFrom,
		To:       []string{account.Email},
		Template: resetTemplate,
		TemplateVars: map[string]any{
			"email":     account.Email,
			"name":      account.Name.Full(),
			"link":      w.ResetLink(token),
			"expiresAt": state.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})

	return nil
}

// Inspect reports the active account a token can still be redeemed for. It
// does not change any state.
func (w *ResetWorkflow) Inspect(ctx context.Context, token string) (*database.Account, error) {
	if token == "" {
		return nil, ErrExpiredOrInvalidToken
	}

	account, err := w.store.FindByResetToken(ctx, utils.Digest(token), w.now())
	if err != nil {
		if errors.Is(err, database.ErrTokenNotRedeemable) {
			return nil, ErrExpiredOrInvalidToken
		}
		return nil, storeError("inspect reset", err)
	}
	if !account.IsActive {
		return nil, ErrExpiredOrInvalidToken
	}

	out := account.Redacted()
	return &out, nil
}

// Redeem replaces the password of the account holding token and clears the
// token. A token can be redeemed once, before it expires.
func (w *ResetWorkflow) Redeem(ctx context.Context, token, password string) (*database.Account, error) {
	if token == "" || password == "" {
		return nil, ErrMissingFields
	}

	digest := utils.Digest(token)

	// Reject unknown and expired tokens before paying for a hash. RedeemReset
	// still decides between concurrent redeemers.
	if _, err := w.store.FindByResetToken(ctx, digest, w.now()); err != nil {
		if errors.Is(err, database.ErrTokenNotRedeemable) {
			return nil, ErrExpiredOrInvalidToken
		}
		return nil, storeError("redeem reset", err)
	}

	hash, err := hashPassword(ctx, w.hasher, password)
	if err != nil {
		return nil, err
	}

	account, err := w.store.RedeemReset(ctx, digest, w.now(), hash)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotRedeemable) {
			return nil, ErrExpiredOrInvalidToken
		}
		return nil, storeError("redeem reset", err)
	}

	log.Infow("user service: password reset", "user_id", account.ID)

	out := account.Redacted()
	return &out, nil
}
