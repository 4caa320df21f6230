package auth

import (
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService signs and verifies session tokens.
type TokenService interface {
	Sign(session *Session) (string, error)
	Verify(token string) (*Session, error)
	TTL() time.Duration
}

// DefaultSigningKeyID is the kid used when the config does not set one.
const DefaultSigningKeyID = "primary"

// TokenServiceImpl implements TokenService with HS256 JWTs.
type TokenServiceImpl struct {
	keyID      string
	signingKey []byte
	keyFunc    jwt.Keyfunc
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes a TokenServiceImpl.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the clock used to stamp and validate tokens.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService from configuration. The signing key
// must already be resolved, see Options.Normalize.
func NewTokenService(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if cfg == nil || cfg.GetSigningKey() == "" {
		return nil, ErrInsecureSecret
	}

	keyID := cfg.GetSigningKeyID()
	if keyID == "" {
		keyID = DefaultSigningKeyID
	}

	alg := jwt.SigningMethodHS256.Alg()
	givenKeys := map[string]keyfunc.GivenKey{
		keyID: keyfunc.NewGivenCustom([]byte(cfg.GetSigningKey()), keyfunc.GivenKeyOptions{
			Algorithm: alg,
		}),
	}

	for kid, secret := range cfg.GetPreviousSigningKeys() {
		if kid == "" || kid == keyID || secret == "" {
			continue
		}
		givenKeys[kid] = keyfunc.NewGivenCustom([]byte(secret), keyfunc.GivenKeyOptions{
			Algorithm: alg,
		})
	}

	var aud jwt.ClaimStrings
	if audience := cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	ts := &TokenServiceImpl{
		keyID:      keyID,
		signingKey: []byte(cfg.GetSigningKey()),
		keyFunc:    keyfunc.NewGiven(givenKeys).Keyfunc,
		ttl:        time.Duration(cfg.GetTokenExpiration()) * time.Hour,
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	ts.logger = normalizeLogger(ts.logger, "auth.token")

	return ts, nil
}

// TTL returns the token lifetime, zero when tokens do not expire.
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Sign serializes the session into a signed token.
func (ts *TokenServiceImpl) Sign(session *Session) (string, error) {
	if session == nil {
		return "", goerrors.New("session must not be nil", goerrors.CategoryInternal)
	}

	if err := session.Validate(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "refusing to sign invalid session")
	}

	now := ts.now()
	claims := claimsFromSession(session)
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = ts.audience
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ID = uuid.NewString()
	if ts.ttl > 0 {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = ts.keyID

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Verify parses and validates a token. Failures are one of ErrTokenMalformed,
// ErrInvalidSignature or ErrTokenExpired.
func (ts *TokenServiceImpl) Verify(raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if ts.ttl > 0 {
		parserOptions = append(parserOptions, jwt.WithExpirationRequired())
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, ts.keyFunc, parserOptions...)
	if err != nil {
		return nil, ts.classify(err)
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if !ts.audienceMatches(claims.Audience) {
		return nil, withSource(ErrInvalidSignature, jwt.ErrTokenInvalidAudience, map[string]any{
			"audience": []string(claims.Audience),
		})
	}

	session, err := claims.session()
	if err != nil {
		ts.logger.Warn("token carries invalid session claims", "error", err)
		return nil, withSource(ErrTokenMalformed, err, nil)
	}

	return session, nil
}

// audienceMatches is true when no audience is configured or the token names
// at least one of the configured audiences.
func (ts *TokenServiceImpl) audienceMatches(aud jwt.ClaimStrings) bool {
	if len(ts.audience) == 0 {
		return true
	}
	for _, want := range ts.audience {
		for _, got := range aud {
			if got == want {
				return true
			}
		}
	}
	return false
}

func (ts *TokenServiceImpl) classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return withSource(ErrTokenExpired, err, nil)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return withSource(ErrTokenMalformed, err, nil)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return withSource(ErrInvalidSignature, err, nil)
	default:
		return withSource(ErrTokenMalformed, err, nil)
	}
}
