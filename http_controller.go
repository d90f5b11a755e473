package accounts

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
	"github.com/ia-nocode/user-roles-v4/middleware/jwtware"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// SignInPayload is the body of POST /session
type SignInPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// UpdatePayload is the body of POST /users/:id
type UpdatePayload struct {
	Patch       ProfilePatch `json:"patch"`
	NewPassword string       `json:"new_password,omitempty"`
}

// DefaultSessionCookie carries the session token for browser callers.
const DefaultSessionCookie = "admin_session"

const sessionLocalsKey = "accounts.admin_session"

// ConsoleController exposes the console as a JSON API. Every caller signs
// in for its own AdminSession and sends the token back as a bearer token
// or in the session cookie.
type ConsoleController struct {
	sessions     *AdminSessions
	logger       Logger
	cookieName   string
	secureCookie bool
	tokenLookup  string
	authenticate router.MiddlewareFunc
}

// ConsoleControllerOption configures the controller
type ConsoleControllerOption func(*ConsoleController)

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) ConsoleControllerOption {
	return func(c *ConsoleController) {
		c.logger = logger
	}
}

// WithSessionCookie sets the session cookie name and its Secure flag
func WithSessionCookie(name string, secure bool) ConsoleControllerOption {
	return func(c *ConsoleController) {
		if name != "" {
			c.cookieName = name
		}
		c.secureCookie = secure
	}
}

// NewConsoleController creates the HTTP controller for sessions.
func NewConsoleController(sessions *AdminSessions, opts ...ConsoleControllerOption) *ConsoleController {
	c := &ConsoleController{
		sessions:   sessions,
		logger:     &defLogger{},
		cookieName: DefaultSessionCookie,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.tokenLookup = "header:" + router.HeaderAuthorization + ",cookie:" + c.cookieName
	c.authenticate = jwtware.New(jwtware.Config{
		TokenValidator: sessions,
		ContextKey:     sessionLocalsKey,
		TokenLookup:    c.tokenLookup,
		ErrorHandler:   c.unauthenticated,
	})
	return c
}

// RegisterRoutes registers the session and user routes.
func (c *ConsoleController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/session", c.Status)
	group.Post("/session", c.SignIn)
	group.Delete("/session", c.SignOut, c.authenticate)

	group.Get("/users/reconcile", c.Reconcile, c.authenticate, c.requireAdmin)
	group.Get("/users", c.ListUsers, c.authenticate, c.requireAdmin)
	group.Post("/users", c.CreateUser, c.authenticate, c.requireAdmin)
	group.Post("/users/:id", c.UpdateUser, c.authenticate, c.requireAdmin)
	group.Delete("/users/:id", c.DeleteUser, c.authenticate, c.requireAdmin)
}

// Status reports the administrator status of the caller's session. A
// caller without a valid session is settled as not admin.
func (c *ConsoleController) Status(ctx router.Context) error {
	payload := map[string]any{
		"is_admin": false,
		"settled":  true,
	}

	raw, err := jwtware.ExtractRawTokenFromContext(ctx, jwtware.GetExtractors(c.tokenLookup))
	if err == nil {
		if session, err := c.sessions.Resolve(ctx.Context(), raw); err == nil {
			status := session.AdminStatus()
			payload["is_admin"] = status.IsAdmin
			payload["settled"] = status.Settled
			payload["identity"] = session.Identity
			payload["expires_at"] = session.ExpiresAt
		}
	}
	return ctx.JSON(router.StatusOK, payload)
}

// SignIn opens a new admin session for the caller.
func (c *ConsoleController) SignIn(ctx router.Context) error {
	payload := &SignInPayload{}
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, err)
	}

	grant, n := c.sessions.SignIn(ctx.Context(), payload.Email, payload.Password)
	if !n.OK() {
		return c.respond(ctx, n, nil)
	}

	ctx.Cookie(&router.Cookie{
		Name:     c.cookieName,
		Value:    grant.Token,
		Path:     "/",
		Expires:  grant.ExpiresAt,
		HTTPOnly: true,
		Secure:   c.secureCookie,
		SameSite: router.CookieSameSiteStrictMode,
	})
	return c.respond(ctx, n, map[string]any{"session": grant})
}

// SignOut ends the caller's session only.
func (c *ConsoleController) SignOut(ctx router.Context) error {
	claims, ok := ctx.Locals(sessionLocalsKey).(*SessionClaims)
	if !ok {
		return c.unauthenticated(ctx, NewError(KindUnauthenticated, "no session claims"))
	}

	n := c.sessions.SignOut(ctx.Context(), claims.SessionID())
	ctx.Cookie(&router.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   c.secureCookie,
		SameSite: router.CookieSameSiteStrictMode,
	})
	return c.respond(ctx, n, nil)
}

// ListUsers returns every profile record.
func (c *ConsoleController) ListUsers(ctx router.Context) error {
	console, err := c.console(ctx)
	if err != nil {
		return c.unauthenticated(ctx, err)
	}

	profiles, n := console.ListUsers(ctx.Context())
	if n != nil {
		return c.respond(ctx, *n, nil)
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return ctx.JSON(router.StatusOK, map[string]any{
		"users": profiles,
	})
}

// CreateUser creates an identity and its profile record.
func (c *ConsoleController) CreateUser(ctx router.Context) error {
	console, err := c.console(ctx)
	if err != nil {
		return c.unauthenticated(ctx, err)
	}

	payload := &CreateAccountRequest{}
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, err)
	}
	return c.respond(ctx, console.CreateUser(ctx.Context(), *payload), nil)
}

// UpdateUser applies a profile patch to the record in the path.
func (c *ConsoleController) UpdateUser(ctx router.Context) error {
	console, err := c.console(ctx)
	if err != nil {
		return c.unauthenticated(ctx, err)
	}

	payload := &UpdatePayload{}
	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, err)
	}
	n := console.UpdateUser(ctx.Context(), UpdateAccountRequest{
		RecordID:    ctx.Param("id"),
		Patch:       payload.Patch,
		NewPassword: payload.NewPassword,
	})
	return c.respond(ctx, n, nil)
}

// DeleteUser removes the profile record in the path.
func (c *ConsoleController) DeleteUser(ctx router.Context) error {
	console, err := c.console(ctx)
	if err != nil {
		return c.unauthenticated(ctx, err)
	}
	return c.respond(ctx, console.DeleteUser(ctx.Context(), ctx.Param("id")), nil)
}

// Reconcile returns the reconciliation report.
func (c *ConsoleController) Reconcile(ctx router.Context) error {
	console, err := c.console(ctx)
	if err != nil {
		return c.unauthenticated(ctx, err)
	}

	report, n := console.Reconcile(ctx.Context())
	if !n.OK() {
		return c.respond(ctx, n, nil)
	}
	return c.respond(ctx, n, map[string]any{"report": report})
}

// requireAdmin runs after authenticate and checks the admin status of the
// caller's own session.
func (c *ConsoleController) requireAdmin(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		session, err := c.session(ctx)
		if err != nil {
			return c.unauthenticated(ctx, err)
		}

		status := session.AdminStatus()
		if !status.Settled || !status.IsAdmin {
			return ctx.JSON(router.StatusForbidden, map[string]any{
				"notification": Notification{
					Level:   LevelError,
					Kind:    KindAccessDenied,
					Message: c.sessions.Messages().Text(MsgAccessDenied),
				},
			})
		}
		return next(ctx)
	}
}

func (c *ConsoleController) session(ctx router.Context) (*AdminSession, error) {
	claims, ok := ctx.Locals(sessionLocalsKey).(*SessionClaims)
	if !ok {
		return nil, NewError(KindUnauthenticated, "no session claims")
	}
	return c.sessions.Session(ctx.Context(), claims)
}

func (c *ConsoleController) console(ctx router.Context) (*Console, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	return session.Console(), nil
}

func (c *ConsoleController) unauthenticated(ctx router.Context, err error) error {
	c.logger.Warn("console api: unauthenticated request: %v", err)
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"notification": Notification{
			Level:   LevelError,
			Kind:    KindUnauthenticated,
			Message: c.sessions.Messages().Text(MsgSessionRequired),
		},
	})
}

func (c *ConsoleController) respond(ctx router.Context, n Notification, extra map[string]any) error {
	payload := map[string]any{"notification": n}
	for k, v := range extra {
		payload[k] = v
	}

	status := router.StatusOK
	switch n.Level {
	case LevelSuccess, LevelWarning:
	default:
		status = StatusFor(n.Kind)
	}
	return ctx.JSON(status, payload)
}

func (c *ConsoleController) badRequest(ctx router.Context, err error) error {
	c.logger.Warn("console api: bad request body: %v", err)
	return ctx.JSON(http.StatusBadRequest, map[string]any{
		"notification": Notification{
			Level:   LevelError,
			Kind:    KindValidation,
			Message: c.sessions.Messages().Text(MsgValidation),
		},
	})
}
