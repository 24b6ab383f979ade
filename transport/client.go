package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Config configures a Client.
type Config struct {
	// Endpoint is the base URL of the remote save service.
	Endpoint string `long:"endpoint" env:"ENDPOINT" default:"https://save.zomroad.dev" description:"Base URL of the save service"`
	// AttemptTimeout bounds each individual request attempt.
	AttemptTimeout time.Duration `long:"attempt-timeout" env:"ATTEMPT_TIMEOUT" default:"10s" description:"Timeout of each request attempt"`
	// MaxAttempts is the retry ceiling of retryable failures.
	MaxAttempts int `long:"max-attempts" env:"MAX_ATTEMPTS" default:"3" description:"Attempts before a retryable failure surfaces"`
	// BackoffBase and BackoffMultiplier shape the exponential backoff
	// between attempts: base * multiplier^attempt.
	BackoffBase       time.Duration `long:"backoff-base" env:"BACKOFF_BASE" default:"100ms" description:"Base of exponential backoff"`
	BackoffMultiplier float64       `long:"backoff-multiplier" env:"BACKOFF_MULTIPLIER" default:"2.0" description:"Multiplier of exponential backoff"`
}

// Validate returns an error if the Config is malformed.
func (cfg Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("missing endpoint")
	} else if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.Errorf("invalid endpoint (%s)", cfg.Endpoint)
	} else if cfg.MaxAttempts < 1 {
		return errors.Errorf("invalid max attempts (%d; expected >= 1)", cfg.MaxAttempts)
	} else if cfg.BackoffMultiplier < 1 {
		return errors.Errorf("invalid backoff multiplier (%v; expected >= 1)", cfg.BackoffMultiplier)
	}
	return nil
}

// Op is one operation against the remote save service. Mutating operations
// are eligible for offline queueing; reads fail fast while offline.
type Op struct {
	Verb string
	Path string
	// Body is JSON-encoded as the request body when non-nil.
	Body interface{}
	// Mutating marks the Op for offline queueing.
	Mutating bool
}

// Client issues single attempts against the remote save service, classifying
// failures into the package's typed taxonomy. Retry policy lives above it,
// in Transport.
type Client struct {
	cfg   Config
	token string
	http  *http.Client
}

// NewClient returns a Client of |cfg|, authenticating with |token|.
func NewClient(cfg Config, token string) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "config")
	}
	return &Client{cfg: cfg, token: token, http: &http.Client{}}, nil
}

// attempt performs one bounded attempt of |op|.
func (c *Client) attempt(ctx context.Context, op Op) (json.RawMessage, error) {
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}

	var body io.Reader
	if op.Body != nil {
		var b, err = json.Marshal(op.Body)
		if err != nil {
			return nil, errors.WithMessage(err, "encoding request body")
		}
		body = bytes.NewReader(b)
	}

	var req, err = http.NewRequestWithContext(ctx, op.Verb,
		strings.TrimSuffix(c.cfg.Endpoint, "/")+op.Path, body)
	if err != nil {
		return nil, errors.WithMessage(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connectivity failures are both network errors;
		// a timed-out attempt is retried like any other.
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode)
	}

	var out json.RawMessage
	if out, err = io.ReadAll(resp.Body); err != nil {
		return nil, &NetworkError{Err: err}
	}
	return out, nil
}

// SessionToken signs a JWT session token for |playerID| under the install's
// |secret|, suitable for NewClient.
func SessionToken(secret []byte, playerID string, ttl time.Duration) (string, error) {
	var now = time.Now()
	var token = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}
