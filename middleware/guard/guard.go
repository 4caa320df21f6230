package guard

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// State is the outcome of loading a credential.
type State int

const (
	// Absent means the request carried no credential.
	Absent State = iota
	// Verified means the credential produced a principal.
	Verified
	// Invalid means a credential was presented and rejected.
	Invalid
)

// Loader resolves a raw credential into a principal.
type Loader func(c *fiber.Ctx, token string) (any, State, error)

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(*fiber.Ctx) bool

	// PublicPaths are matched exactly, PublicPrefixes as path prefixes.
	PublicPaths    []string
	PublicPrefixes []string

	// TokenLookup is a comma separated list of "cookie:<name>" or
	// "header:<name>" sources. The first non empty source wins.
	TokenLookup string
	AuthScheme  string

	// Loader is required.
	Loader Loader

	// ClearCredential is called for Invalid credentials before the request
	// is rejected, typically to expire the session cookie.
	ClearCredential func(*fiber.Ctx)

	ContextKey    string
	LoginRoute    string
	RedirectParam string
	// APIPrefix marks routes that get a JSON 401 instead of a redirect.
	APIPrefix string

	SuccessHandler fiber.Handler
	// UnauthorizedHandler rejects requests with an Absent or Invalid
	// credential.
	UnauthorizedHandler fiber.Handler
	// ErrorHandler handles Loader errors.
	ErrorHandler fiber.ErrorHandler

	// ContextEnricher propagates the principal to the request's
	// context.Context.
	ContextEnricher func(ctx context.Context, principal any) context.Context
}

// New returns a fiber handler that admits public routes and requests with a
// verified credential. Everything else is rejected before the next handler
// runs.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		if IsPublic(c.Path(), cfg.PublicPaths, cfg.PublicPrefixes) {
			return c.Next()
		}

		raw := ExtractRawToken(c, extractors)

		principal, state, err := cfg.Loader(c, raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		switch state {
		case Verified:
		case Invalid:
			if cfg.ClearCredential != nil {
				cfg.ClearCredential(c)
			}
			return cfg.UnauthorizedHandler(c)
		default:
			return cfg.UnauthorizedHandler(c)
		}

		c.Locals(cfg.ContextKey, principal)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), principal))
		}

		return cfg.SuccessHandler(c)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Loader == nil {
		panic("GUARD: middleware configuration: Loader is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "session"
	}

	if cfg.LoginRoute == "" {
		cfg.LoginRoute = "/login"
	}

	if cfg.RedirectParam == "" {
		cfg.RedirectParam = "redirect"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = "cookie:omnisfera_session"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.UnauthorizedHandler == nil {
		loginRoute, param, apiPrefix := cfg.LoginRoute, cfg.RedirectParam, cfg.APIPrefix
		cfg.UnauthorizedHandler = func(c *fiber.Ctx) error {
			if IsAPI(c.Path(), apiPrefix) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": fiber.Map{
						"message":   "authentication required",
						"text_code": "UNAUTHORIZED",
					},
				})
			}
			return c.Redirect(LoginRedirect(loginRoute, param, c.OriginalURL()), RedirectStatus(c.Method()))
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": fiber.Map{
					"message":   "session lookup failed",
					"text_code": "INTERNAL",
				},
			})
		}
	}

	return cfg
}

// IsPublic reports whether path is in the allow-list.
func IsPublic(path string, paths, prefixes []string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// IsAPI reports whether path falls under apiPrefix. An empty prefix matches
// nothing.
func IsAPI(path, apiPrefix string) bool {
	return apiPrefix != "" && strings.HasPrefix(path, apiPrefix)
}

// LoginRedirect builds "<loginRoute>?<param>=<target>". Slashes in the
// target are kept readable.
func LoginRedirect(loginRoute, param, target string) string {
	if target == "" || target == loginRoute {
		return loginRoute
	}
	escaped := strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
	sep := "?"
	if strings.Contains(loginRoute, "?") {
		sep = "&"
	}
	return loginRoute + sep + param + "=" + escaped
}

// RedirectStatus keeps GET and HEAD as 302 and turns other methods into a
// 303 so the browser follows with a GET.
func RedirectStatus(method string) int {
	switch method {
	case fiber.MethodGet, fiber.MethodHead:
		return fiber.StatusFound
	default:
		return fiber.StatusSeeOther
	}
}

// SafeRedirect returns target when it is a site relative path and fallback
// otherwise.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	if strings.ContainsAny(target, "\r\n") {
		return fallback
	}
	return target
}

type Extractor func(c *fiber.Ctx) string

func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) string {
	for _, extractor := range extractors {
		if raw := extractor(c); raw != "" {
			return raw
		}
	}
	return ""
}

// GetExtractors parses a lookup such as "cookie:omnisfera_session,header:Authorization".
func GetExtractors(tokenLookup string, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		}
	}

	return extractors
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) string {
		return c.Cookies(name)
	}
}

func fromHeader(header, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) string {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 || len(a) <= l+1 || a[l] != ' ' || !strings.EqualFold(a[:l], authScheme) {
			return ""
		}
		return strings.TrimSpace(a[l:])
	}
}
