package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"accounts/internal/auth"
	"accounts/internal/database"
	"accounts/internal/mail"
	"accounts/pkg/utils"
)

const (
	generatedPasswordLength = 12
	welcomeTemplate         = "welcome"
)

type AuthOptions struct {
	MailFrom string
	// AllowGeneratedPassword lets signup without a password create the account
	// with a random one, mailed to the user.
	AllowGeneratedPassword bool
	WelcomeAttachments     []string
}

// AuthService handles login and self-service signup.
type AuthService struct {
	store    database.Store
	hasher   PasswordHasher
	issuer   TokenIssuer
	notifier Notifier
	opts     AuthOptions
}

func NewAuthService(store database.Store, hasher PasswordHasher, issuer TokenIssuer, notifier Notifier, opts AuthOptions) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		opts:     opts,
	}
}

type LoginResult struct {
	Handle    string
	Token     string
	ExpiresAt time.Time
}

// Login checks the password of the account matching handle and issues a
// session token for it.
func (s *AuthService) Login(ctx context.Context, handle, password string) (*LoginResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return nil, ErrMissingFields
	}

	account, err := s.store.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("login", err)
	}

	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	if !s.hasher.Verify(ctx, password, account.PasswordHash) {
		return nil, ErrCredentialMismatch
	}

	token, expiresAt, err := s.issuer.Issue(auth.Identity{
		UserID:   account.ID,
		Email:    account.Email,
		Phone:    account.Phone,
		FullName: account.Name.Full(),
	})
	if err != nil {
		return nil, err
	}

	log.Infow("user service: login", "user_id", account.ID)

	return &LoginResult{
		Handle:    handle,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

type SignupInput struct {
	Email    string
	Phone    string
	Password string
	Name     database.Name
}

// Signup creates an active account. When no password is given and generated
// passwords are allowed, one is generated and mailed once the account exists.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*database.Account, error) {
	email := utils.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrMissingFields
	}

	account := &database.Account{
		ID:       uuid.NewString(),
		Email:    email,
		Phone:    in.Phone,
		IsActive: true,
		Name:     in.Name,
	}

	password := in.Password
	if password == "" {
		if !s.opts.AllowGeneratedPassword {
			return nil, ErrMissingFields
		}
		password = utils.GenerateRandomString(generatedPasswordLength)
		account.GeneratedPassword = password
	}

	hash, err := hashPassword(ctx, s.hasher, password)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash

	if err := create(ctx, s.store, account); err != nil {
		return nil, err
	}

	log.Infow("user service: signup", "user_id", account.ID, "generated_password", account.GeneratedPassword != "")

	if account.GeneratedPassword != "" {
		s.notifier.Dispatch(&mail.Email{
			Subject:  "Welcome!",
			From:     s.opts.MailFrom,
			To:       []string{account.Email},
			Template: welcomeTemplate,
			TemplateVars: map[string]any{
				"email":    account.Email,
				"password": account.GeneratedPassword,
				"name":     account.Name.Full(),
			},
			AttachmentKeys: s.opts.WelcomeAttachments,
		})
	}

	out := account.Redacted()
	return &out, nil
}
