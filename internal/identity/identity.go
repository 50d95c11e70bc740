// Package identity stores sign-in accounts. Passwords are kept as bcrypt
// hashes in the accounts collection.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"restocrm/internal/docstore"
	"restocrm/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email")
)

const minPasswordLen = 6

type Account struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}

// Provider creates accounts and checks credentials.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (Account, error)
	SignIn(ctx context.Context, email, password string) (Account, error)
}

type StoreProvider struct {
	store  docstore.Store
	cost   int
	logger *zerolog.Logger
	now    func() time.Time
}

type ProviderOption func(*StoreProvider)

// WithCost sets the bcrypt cost for new password hashes.
func WithCost(cost int) ProviderOption {
	return func(p *StoreProvider) { p.cost = cost }
}

func NewStoreProvider(store docstore.Store, logger *zerolog.Logger, opts ...ProviderOption) *StoreProvider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := &StoreProvider{store: store, cost: bcrypt.DefaultCost, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

func (p *StoreProvider) findByEmail(ctx context.Context, email string) (*docstore.Document, error) {
	docs, err := p.store.Query(ctx, docstore.Query{
		Collection: models.CollectionAccounts,
		Where:      []docstore.Filter{{Field: "email", Value: email}},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (p *StoreProvider) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(password) < minPasswordLen {
		return Account{}, ErrWeakPassword
	}

	existing, err := p.findByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if existing != nil {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	acc := Account{ID: uuid.NewString(), Email: email, CreatedAt: p.now().UnixMilli()}
	err = p.store.Set(ctx, models.CollectionAccounts, acc.ID, map[string]any{
		"email":        acc.Email,
		"passwordHash": string(hashed),
		"createdAt":    acc.CreatedAt,
	})
	if err != nil {
		return Account{}, fmt.Errorf("save account: %w", err)
	}

	p.logger.Info().Str("account_id", acc.ID).Str("email", acc.Email).Msg("account created")
	return acc, nil
}

func (p *StoreProvider) SignIn(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	doc, err := p.findByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if doc == nil {
		return Account{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(doc.String("passwordHash")), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return Account{ID: doc.ID, Email: doc.String("email"), CreatedAt: doc.Int64("createdAt")}, nil
}

// Delete removes an account. Missing accounts are not an error.
func (p *StoreProvider) Delete(ctx context.Context, id string) error {
	err := p.store.Delete(ctx, models.CollectionAccounts, id)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
