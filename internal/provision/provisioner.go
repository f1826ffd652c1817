// Package provision creates login accounts for other people without disturbing
// the session of the operator doing it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/identity"
)

var (
	// ErrCreateAccount means the account could not be created; nothing was
	// persisted.
	ErrCreateAccount = errors.New("provision: create account")
	// ErrPersistProfile means the account exists but its profile documents were
	// not written. The account is left in place.
	ErrPersistProfile = errors.New("provision: persist profile")
)

// Issuer opens isolated sign-in sessions.
type Issuer interface {
	Open(ctx context.Context, name string) (identity.Session, error)
}

// PersistFunc writes the profile documents for a freshly created account.
type PersistFunc func(ctx context.Context, account domain.ProvisionedAccount) error

type Provisioner struct {
	issuer       Issuer
	secretLength int
	log          zerolog.Logger
	newName      func() string
}

func New(issuer Issuer, secretLength int, log zerolog.Logger) (*Provisioner, error) {
	if issuer == nil {
		return nil, errors.New("provision: issuer must not be nil")
	}
	if secretLength < MinSecretLength {
		return nil, fmt.Errorf("provision: secret length must be at least %d", MinSecretLength)
	}
	return &Provisioner{
		issuer:       issuer,
		secretLength: secretLength,
		log:          log.With().Str("component", "provision").Logger(),
		newName:      func() string { return "provision-" + uuid.NewString() },
	}, nil
}

// Provision creates an account for email inside a fresh scoped session, then
// hands it to persist. The session is torn down exactly once whatever happens;
// a teardown failure is logged and does not change the result.
func (p *Provisioner) Provision(ctx context.Context, email string, persist PersistFunc) (domain.ProvisionedAccount, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.ProvisionedAccount{}, fmt.Errorf("%w: email is required", ErrCreateAccount)
	}
	if persist == nil {
		return domain.ProvisionedAccount{}, errors.New("provision: persist must not be nil")
	}

	secret, err := GenerateSecret(p.secretLength)
	if err != nil {
		return domain.ProvisionedAccount{}, fmt.Errorf("%w: %w", ErrCreateAccount, err)
	}

	name := p.newName()
	session, err := p.issuer.Open(ctx, name)
	if err != nil {
		return domain.ProvisionedAccount{}, fmt.Errorf("%w: open session: %w", ErrCreateAccount, err)
	}
	log := p.log.With().Str("session", name).Logger()
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("scoped session teardown failed")
		}
	}()

	userID, err := session.CreateAccount(ctx, email, secret)
	if err != nil {
		return domain.ProvisionedAccount{}, fmt.Errorf("%w: %w", ErrCreateAccount, err)
	}
	account := domain.ProvisionedAccount{UserID: userID, Email: email, Secret: secret}

	if err := persist(ctx, account); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("account created but profile write failed")
		return account, fmt.Errorf("%w: %w", ErrPersistProfile, err)
	}
	log.Info().Str("user_id", userID).Msg("account provisioned")
	return account, nil
}
