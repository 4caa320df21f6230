package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-omnisfera/middleware/guard"
	"github.com/goliatone/go-print"
)

// RouteAuthenticator binds the session layer to fiber: cookies, the route
// guard and permission middlewares.
type RouteAuthenticator struct {
	store          *SessionStore
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	// AuthErrorHandler renders Unauthorized and Forbidden errors.
	AuthErrorHandler func(c *fiber.Ctx, err error) error
	// ErrorHandler renders any error, delegating auth errors to
	// AuthErrorHandler.
	ErrorHandler func(c *fiber.Ctx, err error) error
}

func NewHTTPAuthenticator(store *SessionStore, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		store:          store,
		cfg:            cfg,
		cookieDuration: store.TTL(),
		Logger:         defLogger("auth.http"),
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(l, "auth.http")
	return a
}

// Guard returns the route guard configured from Config.
func (a *RouteAuthenticator) Guard() fiber.Handler {
	return guard.New(guard.Config{
		PublicPaths:    a.cfg.GetPublicPaths(),
		PublicPrefixes: a.cfg.GetPublicPrefixes(),
		TokenLookup:    "cookie:" + a.cfg.GetCookieName() + ",header:" + fiber.HeaderAuthorization,
		ContextKey:     a.cfg.GetContextKey(),
		LoginRoute:     a.cfg.GetLoginRoute(),
		RedirectParam:  a.cfg.GetRedirectParam(),
		APIPrefix:      a.cfg.GetAPIPrefix(),
		Loader: func(c *fiber.Ctx, token string) (any, guard.State, error) {
			session, state, err := a.store.Inspect(c.UserContext(), token)
			if err != nil {
				return nil, guard.Absent, err
			}
			return session, guardState(state), nil
		},
		ClearCredential: a.ClearSession,
		UnauthorizedHandler: func(c *fiber.Ctx) error {
			return a.ErrorHandler(c, ErrUnauthorized)
		},
		ErrorHandler: a.ErrorHandler,
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			session, _ := principal.(*Session)
			return WithSession(ctx, session)
		},
	})
}

// RequirePermission rejects requests whose session lacks permission. It
// must run after Guard.
func (a *RouteAuthenticator) RequirePermission(permission Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, _ := a.CurrentSession(c)
		if err := RequirePermission(session, permission); err != nil {
			return a.ErrorHandler(c, err)
		}
		return c.Next()
	}
}

// RequirePlatformAdmin admits platform principals only.
func (a *RouteAuthenticator) RequirePlatformAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, _ := a.CurrentSession(c)
		if err := RequirePlatformAdmin(session); err != nil {
			return a.ErrorHandler(c, err)
		}
		return c.Next()
	}
}

// CurrentSession returns the session the guard stored for this request.
func (a *RouteAuthenticator) CurrentSession(c *fiber.Ctx) (*Session, bool) {
	if session, ok := c.Locals(a.cfg.GetContextKey()).(*Session); ok && session != nil {
		return session, true
	}
	return SessionFromContext(c.UserContext())
}

// LoadSession resolves the session cookie without rejecting the request.
// Public routes use it to learn who is calling.
func (a *RouteAuthenticator) LoadSession(c *fiber.Ctx) (*Session, error) {
	if session, ok := a.CurrentSession(c); ok {
		return session, nil
	}
	return a.store.Resolve(c.UserContext(), a.SessionToken(c))
}

// SessionToken returns the raw session cookie.
func (a *RouteAuthenticator) SessionToken(c *fiber.Ctx) string {
	return c.Cookies(a.cfg.GetCookieName())
}

// SetSession signs session and stores it in the session cookie.
func (a *RouteAuthenticator) SetSession(c *fiber.Ctx, session *Session) (string, error) {
	token, err := a.store.Create(session)
	if err != nil {
		return "", err
	}
	a.SetToken(c, token)
	return token, nil
}

// SetToken stores an already signed token in the session cookie.
func (a *RouteAuthenticator) SetToken(c *fiber.Ctx, token string) {
	cookie := &fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if a.cookieDuration > 0 {
		cookie.Expires = time.Now().Add(a.cookieDuration)
	}
	c.Cookie(cookie)
}

// ClearSession expires the session cookie.
func (a *RouteAuthenticator) ClearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Logout revokes the current token and expires the cookie. It reports
// whether a token was revoked.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) (bool, error) {
	token := a.SessionToken(c)
	a.ClearSession(c)
	return a.store.Delete(c.UserContext(), token)
}

func (a *RouteAuthenticator) isAPI(c *fiber.Ctx) bool {
	return guard.IsAPI(c.Path(), a.cfg.GetAPIPrefix())
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info("authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	if a.isAPI(c) || richErr.Category == errors.CategoryAuthz {
		return sendError(c, richErr)
	}

	target := guard.LoginRedirect(a.cfg.GetLoginRoute(), a.cfg.GetRedirectParam(), c.OriginalURL())
	return c.Redirect(target, guard.RedirectStatus(c.Method()))
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	}

	a.Logger.Error("request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
		"source", richErr.Source,
	)

	return sendError(c, richErr)
}

// sendError writes the public part of an error. Internal details stay in
// the logs.
func sendError(c *fiber.Ctx, richErr *errors.Error) error {
	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	message := richErr.Message
	if code >= fiber.StatusInternalServerError {
		message = "An unexpected server error occurred"
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   message,
			"text_code": richErr.TextCode,
		},
	})
}

func guardState(s ResolveState) guard.State {
	switch s {
	case StateVerified:
		return guard.Verified
	case StateInvalid:
		return guard.Invalid
	default:
		return guard.Absent
	}
}
