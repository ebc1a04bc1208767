package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"accounts/internal/database"
)

type account struct {
	ID               string     `gorm:"primaryKey;type:text"`
	Email            string     `gorm:"not null;uniqueIndex"`
	Phone            string     `gorm:"index"`
	Password         string     `gorm:"column:password;not null"`
	IsActive         bool       `gorm:"not null"`
	NameFirst        string     `gorm:"column:name_first"`
	NameLast         string     `gorm:"column:name_last"`
	ResetRequestedAt *time.Time `gorm:"column:reset_requested_at"`
	ResetToken       *string    `gorm:"column:reset_token;uniqueIndex"`
	ResetExpiresAt   *time.Time `gorm:"column:reset_expires_at"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *account) TableName() string {
	return "accounts"
}

// publicColumns is the projection used for listings.
var publicColumns = []string{"id", "email", "phone", "is_active", "name_first", "name_last", "created_at", "updated_at"}

func fromAccount(a *database.Account) *account {
	row := &account{
		ID:        a.ID,
		Email:     a.Email,
		Phone:     a.Phone,
		Password:  a.PasswordHash,
		IsActive:  a.IsActive,
		NameFirst: a.Name.First,
		NameLast:  a.Name.Last,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Reset != nil {
		requestedAt, token, expiresAt := a.Reset.RequestedAt, a.Reset.Token, a.Reset.ExpiresAt
		row.ResetRequestedAt = &requestedAt
		row.ResetToken = &token
		row.ResetExpiresAt = &expiresAt
	}
	return row
}

func (a *account) toAccount() *database.Account {
	out := &database.Account{
		ID:           a.ID,
		Email:        a.Email,
		Phone:        a.Phone,
		PasswordHash: a.Password,
		IsActive:     a.IsActive,
		Name:         database.Name{First: a.NameFirst, Last: a.NameLast},
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.ResetToken != nil && a.ResetExpiresAt != nil {
		out.Reset = &database.ResetState{Token: *a.ResetToken, ExpiresAt: *a.ResetExpiresAt}
		if a.ResetRequestedAt != nil {
			out.Reset.RequestedAt = *a.ResetRequestedAt
		}
	}
	return out
}

// Store is the relational implementation of database.Store.
type Store struct {
	db *gorm.DB
}

var _ database.Store = (*Store)(nil)

// Connect opens dsn and migrates the accounts table.
func Connect(dsn string) (*Store, error) {
	db, err := open(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Debug("GORM connected to database")

	if err := db.AutoMigrate(&account{}); err != nil {
		return nil, fmt.Errorf("failed to migrate accounts: %w", err)
	}

	return New(db), nil
}

func open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) first(ctx context.Context, query string, args ...any) (*database.Account, error) {
	var row account
	result := s.db.WithContext(ctx).Where(query, args...).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, result.Error
	}
	return row.toAccount(), nil
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*database.Account, error) {
	if handle == "" {
		return nil, database.ErrNotFound
	}
	a, err := s.first(ctx, "email = ?", strings.ToLower(handle))
	if !errors.Is(err, database.ErrNotFound) {
		return a, err
	}
	return s.first(ctx, "phone = ?", handle)
}

func (s *Store) FindByID(ctx context.Context, id string) (*database.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) List(ctx context.Context) ([]database.Account, error) {
	var rows []account
	result := s.db.WithContext(ctx).Select(publicColumns).Order("created_at, id").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	out := make([]database.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toAccount())
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, a *database.Account) error {
	row := fromAccount(a)
	result := s.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return database.ErrDuplicateEmail
		}
		return result.Error
	}

	a.CreatedAt = row.CreatedAt
	a.UpdatedAt = row.UpdatedAt
	return nil
}

func patchColumns(p database.AccountPatch) map[string]any {
	updates := map[string]any{}
	if p.Phone != nil {
		updates["phone"] = *p.Phone
	}
	if p.PasswordHash != nil {
		updates["password"] = *p.PasswordHash
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}
	if p.Name != nil {
		if p.Name.First != nil {
			updates["name_first"] = *p.Name.First
		}
		if p.Name.Last != nil {
			updates["name_last"] = *p.Name.Last
		}
	}
	return updates
}

func (s *Store) Update(ctx context.Context, id string, patch database.AccountPatch) (*database.Account, error) {
	updates := patchColumns(patch)
	if len(updates) == 0 {
		return s.FindByID(ctx, id)
	}
	updates["updated_at"] = time.Now()

	var rows []account
	result := s.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(rows) == 0 {
		return nil, database.ErrNotFound
	}
	return rows[0].toAccount(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&account{}, "id = ?", id).Error
}

func (s *Store) SetResetState(ctx context.Context, id string, state database.ResetState) error {
	result := s.db.WithContext(ctx).
		Model(&account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_requested_at": state.RequestedAt,
			"reset_token":        state.Token,
			"reset_expires_at":   state.ExpiresAt,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *Store) FindByResetToken(ctx context.Context, digest string, now time.Time) (*database.Account, error) {
	if digest == "" {
		return nil, database.ErrTokenNotRedeemable
	}
	a, err := s.first(ctx, "reset_token = ? AND reset_expires_at > ?", digest, now)
	if errors.Is(err, database.ErrNotFound) {
		return nil, database.ErrTokenNotRedeemable
	}
	return a, err
}

// RedeemReset runs as one UPDATE ... WHERE ... RETURNING. Postgres re-checks
// the WHERE clause after waiting on a concurrent writer's row lock, so only
// one redeemer can match.
func (s *Store) RedeemReset(ctx context.Context, digest string, now time.Time, passwordHash string) (*database.Account, error) {
	if digest == "" {
		return nil, database.ErrTokenNotRedeemable
	}

	var rows []account
	result := s.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("reset_token = ? AND reset_expires_at > ?", digest, now).
		Updates(map[string]any{
			"password":           passwordHash,
			"reset_requested_at": nil,
			"reset_token":        nil,
			"reset_expires_at":   nil,
			"updated_at":         now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(rows) == 0 {
		return nil, database.ErrTokenNotRedeemable
	}
	return rows[0].toAccount(), nil
}

// Truncate removes every account.
func (s *Store) Truncate(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(`TRUNCATE TABLE "accounts"`).Error
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
