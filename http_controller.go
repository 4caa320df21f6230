package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-omnisfera/middleware/guard"
	"github.com/goliatone/go-print"
)

const TextCodeValidationFailed = "VALIDATION_FAILED"

type AuthControllerRoutes struct {
	Login            string
	AdminLogin       string
	Logout           string
	Session          string
	Impersonate      string
	ImpersonateEnd   string
	DefaultLandingAt string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	Auther       *RouteAuthenticator
	Identity     *IdentityProvider
	Impersonator *Impersonator
	Activity     ActivitySink
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithIdentityProvider(p *IdentityProvider) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Identity = p
		return c
	}
}

func WithImpersonator(i *Impersonator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Impersonator = i
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l, "auth.controller")
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger("auth.controller"),
		Activity: noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Login:            "/login",
			AdminLogin:       "/api/admin/login",
			Logout:           "/logout",
			Session:          "/api/session",
			Impersonate:      "/api/admin/impersonate",
			ImpersonateEnd:   "/api/admin/impersonate/end",
			DefaultLandingAt: "/",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Identity == nil {
		panic("Missing IdentityProvider in auth controller...")
	}

	if c.Impersonator == nil {
		panic("Missing Impersonator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the session endpoints. The route guard must be
// installed on app before the routes run.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Post(controller.Routes.AdminLogin, controller.AdminLoginPost).Name("admin-sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).Name("sign-out.get")
	app.Post(controller.Routes.Logout, controller.LogOut).Name("sign-out.post")

	app.Get(controller.Routes.Session, controller.SessionShow).Name("session.get")

	app.Post(controller.Routes.Impersonate,
		controller.Auther.RequirePlatformAdmin(),
		controller.ImpersonateStart,
	).Name("impersonate.post")
	app.Post(controller.Routes.ImpersonateEnd, controller.ImpersonateEnd).Name("impersonate-end.post")

	return controller
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Redirect string `form:"redirect" json:"redirect"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// ImpersonateRequest payload
type ImpersonateRequest struct {
	WorkspaceID string `form:"workspace_id" json:"workspace_id"`
	MemberID    string `form:"member_id" json:"member_id"`
}

// Validate will run validation rules
func (r ImpersonateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.WorkspaceID, validation.Required, is.UUID),
		validation.Field(&r.MemberID, is.UUID),
	)
}

// LoginPost handles the workspace login form. Form posts are answered with
// a redirect, JSON posts with JSON.
func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.fail(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse login payload").
			WithCode(errors.CodeBadRequest))
	}

	if payload.Redirect == "" {
		payload.Redirect = c.Query(a.Auther.cfg.GetRedirectParam())
	}
	target := guard.SafeRedirect(payload.Redirect, a.Routes.DefaultLandingAt)

	if err := payload.Validate(); err != nil {
		return a.fail(c, validationError(err))
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "payload", print.MaybePrettyJSON(map[string]any{
			"email":    payload.Email,
			"redirect": payload.Redirect,
		}))
	}

	session, err := a.Identity.VerifyWorkspaceMember(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(c, err)
	}

	if _, err := a.Auther.SetSession(c, session); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"ok":       true,
			"redirect": target,
			"session":  NewSessionView(session),
		})
	}

	return c.Redirect(target, fiber.StatusSeeOther)
}

// AdminLoginPost handles the platform admin login.
func (a *AuthController) AdminLoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return sendError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse login payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return sendValidation(c, err)
	}

	session, err := a.Identity.VerifyPlatformAdmin(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return sendError(c, asRichError(err))
	}

	if _, err := a.Auther.SetSession(c, session); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"session": NewSessionView(session),
	})
}

// LogOut revokes the session, clears the cookie and sends the user to the
// login page.
func (a *AuthController) LogOut(c *fiber.Ctx) error {
	session, err := a.Auther.LoadSession(c)
	if err != nil {
		a.Logger.Warn("unable to resolve session on logout", "error", err)
	}

	revoked, err := a.Auther.Logout(c)
	if err != nil {
		a.Logger.Error("failed to revoke session token", "error", err)
	}

	if session != nil {
		recordActivity(c.UserContext(), a.Activity, a.Logger, ActivityEvent{
			EventType:   ActivityEventLogout,
			Actor:       actorFromSession(session),
			UserID:      session.UserID,
			WorkspaceID: session.WorkspaceID(),
			Metadata:    map[string]any{"revoked": revoked},
		})
	}

	return c.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// SessionShow returns the current session.
func (a *AuthController) SessionShow(c *fiber.Ctx) error {
	session, ok := a.Auther.CurrentSession(c)
	if !ok {
		return a.Auther.ErrorHandler(c, ErrUnauthorized)
	}
	return c.JSON(NewSessionView(session))
}

// ImpersonateStart swaps the admin cookie for a session of the target
// member.
func (a *AuthController) ImpersonateStart(c *fiber.Ctx) error {
	admin, _ := a.Auther.CurrentSession(c)

	payload := new(ImpersonateRequest)
	if err := c.BodyParser(payload); err != nil {
		return sendError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse impersonation payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return sendValidation(c, err)
	}

	token, session, err := a.Impersonator.Start(c.UserContext(), admin, payload.WorkspaceID, payload.MemberID)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	a.Auther.SetToken(c, token)

	return c.JSON(fiber.Map{
		"ok":      true,
		"session": NewSessionView(session),
	})
}

// ImpersonateEnd restores the admin session.
func (a *AuthController) ImpersonateEnd(c *fiber.Ctx) error {
	current, ok := a.Auther.CurrentSession(c)
	if !ok {
		return a.Auther.ErrorHandler(c, ErrUnauthorized)
	}

	token, admin, err := a.Impersonator.End(c.UserContext(), current)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	a.Auther.SetToken(c, token)

	return c.JSON(fiber.Map{
		"ok":      true,
		"session": NewSessionView(admin),
	})
}

// fail answers a failed workspace login. JSON clients get the error body,
// form posts go back to the login page with the error text code.
func (a *AuthController) fail(c *fiber.Ctx, err error) error {
	richErr := asRichError(err)

	if wantsJSON(c) {
		if richErr.TextCode == TextCodeValidationFailed {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fiber.Map{
					"message":   richErr.Message,
					"text_code": richErr.TextCode,
					"fields":    richErr.Metadata,
				},
			})
		}
		return sendError(c, richErr)
	}

	loginRoute := a.Routes.Login
	param := a.Auther.cfg.GetRedirectParam()
	target := guard.LoginRedirect(loginRoute, param, guard.SafeRedirect(c.FormValue(param, c.Query(param)), ""))
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	code := richErr.TextCode
	if code == "" {
		code = "LOGIN_FAILED"
	}
	return c.Redirect(target+sep+"error="+code, fiber.StatusSeeOther)
}

type SessionView struct {
	UserID          string         `json:"user_id"`
	UsuarioNome     string         `json:"usuario_nome"`
	UserRole        Role           `json:"user_role"`
	IsPlatformAdmin bool           `json:"is_platform_admin"`
	WorkspaceID     string         `json:"workspace_id,omitempty"`
	WorkspaceName   string         `json:"workspace_name,omitempty"`
	MemberID        string         `json:"member_id,omitempty"`
	Member          PermissionSet  `json:"member,omitempty"`
	Impersonating   bool           `json:"is_impersonating"`
	ImpersonatedBy  *Impersonation `json:"impersonated_by,omitempty"`
	Permissions     []Permission   `json:"permissions"`
}

// NewSessionView flattens a session for clients. Platform admins list every
// permission.
func NewSessionView(s *Session) SessionView {
	view := SessionView{
		UserID:          s.UserID,
		UsuarioNome:     s.UserName,
		UserRole:        s.Role,
		IsPlatformAdmin: s.IsPlatformAdmin(),
		Impersonating:   s.IsImpersonating(),
		ImpersonatedBy:  s.Impersonation,
		Permissions:     []Permission{},
	}

	if s.Workspace != nil {
		view.WorkspaceID = s.Workspace.ID
		view.WorkspaceName = s.Workspace.Name
		view.MemberID = s.Workspace.MemberID
		view.Member = s.Workspace.Permissions
		view.Permissions = s.Workspace.Permissions.Granted()
	}

	if view.IsPlatformAdmin {
		view.Permissions = AllPermissions()
	}

	return view
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func asRichError(err error) *errors.Error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
		WithCode(errors.CodeInternal)
}

// validationError turns ozzo validation errors into a rich error with one
// metadata entry per field.
func validationError(err error) *errors.Error {
	fields := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	} else {
		fields["payload"] = err.Error()
	}

	return errors.New("invalid request payload", errors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(errors.CodeBadRequest).
		WithMetadata(fields)
}

func sendValidation(c *fiber.Ctx, err error) error {
	richErr := validationError(err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"fields":    richErr.Metadata,
		},
	})
}
