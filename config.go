package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// MinSigningKeyLength is the minimum secret length accepted in production.
	MinSigningKeyLength = 32

	// DevSigningKey is only used outside production when no secret is set.
	DevSigningKey = "omnisfera-development-secret-do-not-use-in-production"

	DefaultCookieName = "omnisfera_session"
)

// Environment variables read by ApplyEnv.
const (
	EnvKeyEnvironment  = "OMNISFERA_ENV"
	EnvKeySecret       = "OMNISFERA_SESSION_SECRET"
	EnvKeyDatabaseDSN  = "OMNISFERA_DATABASE_DSN"
	EnvKeyRedisAddr    = "OMNISFERA_REDIS_ADDR"
	EnvKeyListenAddr   = "OMNISFERA_LISTEN_ADDR"
	EnvKeyCookieSecure = "OMNISFERA_COOKIE_SECURE"
)

var _ Config = (*Options)(nil)

// Options is the concrete Config, loadable from YAML.
type Options struct {
	Environment         string            `yaml:"environment"`
	SigningKey          string            `yaml:"signing_key"`
	SigningKeyID        string            `yaml:"signing_key_id"`
	PreviousSigningKeys map[string]string `yaml:"previous_signing_keys"`
	TokenExpiration     int               `yaml:"token_expiration"`
	Issuer              string            `yaml:"issuer"`
	Audience            []string          `yaml:"audience"`
	CookieName          string            `yaml:"cookie_name"`
	CookieSecure        bool              `yaml:"cookie_secure"`
	ContextKey          string            `yaml:"context_key"`
	LoginRoute          string            `yaml:"login_route"`
	RedirectParam       string            `yaml:"redirect_param"`
	APIPrefix           string            `yaml:"api_prefix"`
	PublicPaths         []string          `yaml:"public_paths"`
	PublicPrefixes      []string          `yaml:"public_prefixes"`

	DatabaseDSN string `yaml:"database_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	ListenAddr  string `yaml:"listen_addr"`

	insecure bool
}

// DefaultOptions returns development defaults.
func DefaultOptions() *Options {
	return &Options{
		Environment:     EnvDevelopment,
		SigningKeyID:    DefaultSigningKeyID,
		TokenExpiration: 24 * 7,
		Issuer:          "omnisfera",
		CookieName:      DefaultCookieName,
		ContextKey:      "session",
		LoginRoute:      "/login",
		RedirectParam:   "redirect",
		APIPrefix:       "/api/",
		PublicPaths: []string{
			"/login",
			"/logout",
			"/api/admin/login",
			"/privacidade",
			"/favicon.ico",
		},
		PublicPrefixes: []string{
			"/static/",
			"/assets/",
		},
		DatabaseDSN: "file:omnisfera.db?cache=shared",
		ListenAddr:  ":8080",
	}
}

// LoadOptions reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(raw, opts); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	opts.ApplyEnv(os.LookupEnv)

	return opts, nil
}

// ApplyEnv overrides options from the environment.
func (o *Options) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvKeyEnvironment); ok && v != "" {
		o.Environment = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvKeySecret); ok && v != "" {
		o.SigningKey = v
	}
	if v, ok := lookup(EnvKeyDatabaseDSN); ok && v != "" {
		o.DatabaseDSN = v
	}
	if v, ok := lookup(EnvKeyRedisAddr); ok {
		o.RedisAddr = v
	}
	if v, ok := lookup(EnvKeyListenAddr); ok && v != "" {
		o.ListenAddr = v
	}
	if v, ok := lookup(EnvKeyCookieSecure); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.CookieSecure = b
		}
	}
}

// Normalize validates the signing secret. Production requires a secret of at
// least MinSigningKeyLength bytes. Elsewhere a missing secret falls back to
// DevSigningKey and the options are flagged insecure.
func (o *Options) Normalize(logger Logger) error {
	logger = normalizeLogger(logger, "auth.config")

	if o.IsProduction() {
		if len(o.SigningKey) < MinSigningKeyLength {
			return withSource(ErrInsecureSecret, nil, map[string]any{
				"environment": o.Environment,
				"min_length":  MinSigningKeyLength,
			})
		}
		if o.SigningKey == DevSigningKey {
			return withSource(ErrInsecureSecret, fmt.Errorf("development secret used in production"), nil)
		}
		return nil
	}

	if o.SigningKey == "" {
		o.SigningKey = DevSigningKey
		o.insecure = true
		logger.Warn("no session signing secret configured, using development fallback",
			"environment", o.Environment,
			"env_key", EnvKeySecret,
		)
	}

	return nil
}

// IsProduction reports whether the environment is production.
func (o *Options) IsProduction() bool {
	return strings.EqualFold(o.Environment, EnvProduction)
}

// Insecure is true when the development fallback secret is in use.
func (o *Options) Insecure() bool {
	return o.insecure
}

func (o *Options) GetEnvironment() string { return o.Environment }

func (o *Options) GetSigningKey() string { return o.SigningKey }

func (o *Options) GetSigningKeyID() string { return o.SigningKeyID }

func (o *Options) GetPreviousSigningKeys() map[string]string { return o.PreviousSigningKeys }

func (o *Options) GetTokenExpiration() int { return o.TokenExpiration }

func (o *Options) GetIssuer() string { return o.Issuer }

func (o *Options) GetAudience() []string { return o.Audience }

func (o *Options) GetCookieName() string {
	if o.CookieName == "" {
		return DefaultCookieName
	}
	return o.CookieName
}

func (o *Options) GetCookieSecure() bool { return o.CookieSecure }

func (o *Options) GetContextKey() string {
	if o.ContextKey == "" {
		return "session"
	}
	return o.ContextKey
}

func (o *Options) GetLoginRoute() string {
	if o.LoginRoute == "" {
		return "/login"
	}
	return o.LoginRoute
}

func (o *Options) GetRedirectParam() string {
	if o.RedirectParam == "" {
		return "redirect"
	}
	return o.RedirectParam
}

func (o *Options) GetAPIPrefix() string { return o.APIPrefix }

func (o *Options) GetPublicPaths() []string { return o.PublicPaths }

func (o *Options) GetPublicPrefixes() []string { return o.PublicPrefixes }
