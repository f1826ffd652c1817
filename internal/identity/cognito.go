package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

var (
	ErrAccountExists = errors.New("identity: account already exists")
	ErrUserNotFound  = errors.New("identity: user not found")
	ErrSessionClosed = errors.New("identity: session closed")
)

// cognitoAPI is the subset of the Cognito client used here.
type cognitoAPI interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	AdminConfirmSignUp(ctx context.Context, params *cip.AdminConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.AdminConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
}

// PoolConfig identifies the user pool and app client.
type PoolConfig struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

// Directory manages accounts with administrator credentials.
type Directory struct {
	api    cognitoAPI
	poolID string
}

func NewDirectory(api cognitoAPI, poolID string) (*Directory, error) {
	if api == nil {
		return nil, errors.New("identity: cognito client must not be nil")
	}
	if poolID == "" {
		return nil, errors.New("identity: user pool id must not be empty")
	}
	return &Directory{api: api, poolID: poolID}, nil
}

// DeleteUser removes the account whose sub is userID. Profile ids are Cognito
// subs while the pool's username may be the email, so the username is looked up
// first. An account that does not exist counts as deleted.
func (d *Directory) DeleteUser(ctx context.Context, userID string) error {
	username, err := d.usernameFor(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = d.api.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(d.poolID),
		Username:   aws.String(username),
	})
	var nf *types.UserNotFoundException
	if errors.As(err, &nf) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("identity: AdminDeleteUser: %w", err)
	}
	return nil
}

// usernameFor resolves the pool username of the account with the given sub.
func (d *Directory) usernameFor(ctx context.Context, sub string) (string, error) {
	if sub == "" || strings.ContainsAny(sub, `"\`) {
		return "", fmt.Errorf("identity: invalid user id %q", sub)
	}
	out, err := d.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(d.poolID),
		Filter:     aws.String(fmt.Sprintf("sub = %q", sub)),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("identity: ListUsers: %w", err)
	}
	if len(out.Users) == 0 {
		return "", ErrUserNotFound
	}
	return aws.ToString(out.Users[0].Username), nil
}

// Issuer opens scoped sessions. Every session gets its own client, built from the
// same AWS configuration, so signing in inside it never touches the caller's
// credentials.
type Issuer struct {
	pool      PoolConfig
	newClient func(name string) cognitoAPI
}

// NewIssuer builds scoped clients from cfg, tagged with the session name.
func NewIssuer(cfg aws.Config, pool PoolConfig) (*Issuer, error) {
	return newIssuerWithFactory(pool, func(name string) cognitoAPI {
		return cip.NewFromConfig(cfg, func(o *cip.Options) {
			o.AppID = name
		})
	})
}

func newIssuerWithFactory(pool PoolConfig, factory func(name string) cognitoAPI) (*Issuer, error) {
	if pool.UserPoolID == "" || pool.ClientID == "" {
		return nil, errors.New("identity: user pool id and client id are required")
	}
	if factory == nil {
		return nil, errors.New("identity: client factory must not be nil")
	}
	return &Issuer{pool: pool, newClient: factory}, nil
}

// Session is a sign-in context separate from the caller's.
type Session interface {
	Name() string
	CreateAccount(ctx context.Context, email, secret string) (string, error)
	Close(ctx context.Context) error
}

var _ Session = (*ScopedSession)(nil)

// Open creates a session named name. Names must be unique per concurrent
// operation.
func (i *Issuer) Open(_ context.Context, name string) (Session, error) {
	if name == "" {
		return nil, errors.New("identity: session name must not be empty")
	}
	return &ScopedSession{name: name, pool: i.pool, api: i.newClient(name)}, nil
}

// ScopedSession is an isolated sign-in context. The account it creates is signed
// in here and nowhere else.
type ScopedSession struct {
	name string
	pool PoolConfig
	api  cognitoAPI

	mu          sync.Mutex
	accessToken string
	closed      bool
}

func (s *ScopedSession) Name() string { return s.name }

// CreateAccount registers email with secret, confirms it and signs it in inside
// the session. It returns the new account's sub, which becomes the profile id.
func (s *ScopedSession) CreateAccount(ctx context.Context, email, secret string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	out, err := s.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:   aws.String(s.pool.ClientID),
		SecretHash: s.secretHash(email),
		Username:   aws.String(email),
		Password:   aws.String(secret),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("identity: SignUp: %w", err)
	}
	userID := aws.ToString(out.UserSub)

	if _, err := s.api.AdminConfirmSignUp(ctx, &cip.AdminConfirmSignUpInput{
		UserPoolId: aws.String(s.pool.UserPoolID),
		Username:   aws.String(email),
	}); err != nil {
		return userID, fmt.Errorf("identity: AdminConfirmSignUp: %w", err)
	}

	params := map[string]string{"USERNAME": email, "PASSWORD": secret}
	if h := s.secretHash(email); h != nil {
		params["SECRET_HASH"] = *h
	}
	auth, err := s.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(s.pool.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return userID, fmt.Errorf("identity: InitiateAuth: %w", err)
	}
	if auth.AuthenticationResult != nil {
		s.accessToken = aws.ToString(auth.AuthenticationResult.AccessToken)
	}
	return userID, nil
}

// Close signs the session out. Calls after the first are no-ops.
func (s *ScopedSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.accessToken == "" {
		return nil
	}
	token := s.accessToken
	s.accessToken = ""
	if _, err := s.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(token)}); err != nil {
		return fmt.Errorf("identity: GlobalSignOut: %w", err)
	}
	return nil
}

// secretHash is required when the app client has a secret.
func (s *ScopedSession) secretHash(username string) *string {
	if s.pool.ClientSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(s.pool.ClientSecret))
	mac.Write([]byte(username + s.pool.ClientID))
	return aws.String(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
