package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// CognitoClientSecretKey is the parameter holding the app client secret.
const CognitoClientSecretKey = "cognito/client_secret"

var ErrNotFound = errors.New("paramstore: parameter not found")

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client reads decrypted parameters below a fixed prefix. Values are cached for
// the life of the process, which for a Lambda is one warm container.
type Client struct {
	api    ssmAPI
	prefix string

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Client resolving keys below prefix. An empty prefix means keys
// are full parameter names.
func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{
		api:    api,
		prefix: strings.TrimRight(strings.TrimSpace(prefix), "/"),
		cache:  map[string]string{},
	}, nil
}

// Name returns the full parameter name for key.
func (c *Client) Name(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if c.prefix == "" {
		return "/" + key
	}
	return c.prefix + "/" + key
}

// Get returns the value of key, reading SSM on first use.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	if strings.Trim(strings.TrimSpace(key), "/") == "" {
		return "", errors.New("paramstore: key is required")
	}
	name := c.Name(key)

	c.mu.RLock()
	v, ok := c.cache[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}

	c.mu.Lock()
	c.cache[name] = *out.Parameter.Value
	c.mu.Unlock()
	return *out.Parameter.Value, nil
}

// GetOptional is Get, but a missing parameter yields "" and no error.
func (c *Client) GetOptional(ctx context.Context, key string) (string, error) {
	v, err := c.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// CognitoClientSecret returns the app client secret, or "" for a public client.
func (c *Client) CognitoClientSecret(ctx context.Context) (string, error) {
	return c.GetOptional(ctx, CognitoClientSecretKey)
}
