package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// AuthControllerRoutes are the mount points for the JSON surface.
type AuthControllerRoutes struct {
	Login     string
	Logout    string
	LogoutAll string
	IsAuth    string
	Sessions  string
	Password  string
	InitRoot  string
}

// AuthController is the fiber JSON controller for the auth surface.
type AuthController struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Manager    *SessionManager
	Config     Config
	Routes     *AuthControllerRoutes
	ContextKey string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		_, c.Logger = ResolveLogger("auth.http_controller", nil, l)
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(repo RepositoryManager, manager *SessionManager, cfg Config, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		Repo:       repo,
		Manager:    manager,
		Config:     cfg,
		ContextKey: cfg.GetContextKey(),
		Routes: &AuthControllerRoutes{
			Login:     "/auth/login",
			Logout:    "/auth/logout",
			LogoutAll: "/auth/logoutAll",
			IsAuth:    "/auth/isAuth",
			Sessions:  "/auth/sessions",
			Password:  "/auth/password",
			InitRoot:  "/users/root",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Manager == nil {
		panic("Missing SessionManager in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the auth surface. The gate handler guards
// every route except login and root bootstrap; callers build it with
// middleware/sessionware so the controller stays decoupled from the
// middleware package.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController, gate fiber.Handler) {
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.InitRoot, controller.InitRootPost)

	app.Get(controller.Routes.Logout, gate, controller.LogOut)
	app.Get(controller.Routes.LogoutAll, gate, controller.LogOutAll)
	app.Get(controller.Routes.IsAuth, gate, controller.IsAuth)
	app.Get(controller.Routes.Sessions, gate, controller.SessionsList)
	app.Delete(controller.Routes.Sessions+"/:id", gate, controller.SessionRevoke)
	app.Post(controller.Routes.Password, gate, controller.PasswordChange)
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"rememberMe"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports the remember-me flag
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
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

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	user, token, err := a.Manager.Login(c.UserContext(), payload, ExtractFingerprint(c))
	if err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":      user,
		"sessionId": token,
	})
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	if err := a.Manager.Logout(c.UserContext(), ac.Session.Token); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"message": "logged out"})
}

func (a *AuthController) LogOutAll(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	n, err := a.Manager.LogoutAll(c.UserContext(), ac.UserID)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("logged out of %d sessions", n),
	})
}

func (a *AuthController) IsAuth(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	return c.JSON(fiber.Map{"user": ac.User})
}

// SessionsList returns the caller's sessions newest-first, the backing
// data for a "manage devices" screen.
func (a *AuthController) SessionsList(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	sessions, err := a.Repo.Sessions().ListForUser(c.UserContext(), ac.UserID)
	if err != nil {
		return a.handleError(c, WrapInternal(err, "failed to list sessions"))
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

// SessionRevoke deletes one of the caller's sessions by id. Revoking a
// session the caller does not own is a 404, not a 403: the id space
// must not be probeable.
func (a *AuthController) SessionRevoke(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return a.handleError(c, ErrSessionNotFound)
	}

	session, err := a.Repo.Sessions().GetByID(c.UserContext(), id.String())
	if err != nil || session.UserID != ac.UserID {
		return a.handleError(c, ErrSessionNotFound)
	}

	if _, err := a.Repo.Sessions().Revoke(c.UserContext(), id); err != nil {
		return a.handleError(c, WrapInternal(err, "failed to revoke session"))
	}

	return c.JSON(fiber.Map{"message": "session revoked"})
}

// PasswordChangeRequest payload
type PasswordChangeRequest struct {
	CurrentPassword string `form:"current_password" json:"currentPassword"`
	NewPassword     string `form:"new_password" json:"newPassword"`
}

// Validate will run validation rules
func (r PasswordChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

func (a *AuthController) PasswordChange(c *fiber.Ctx) error {
	ac, ok := a.authContext(c)
	if !ok {
		return a.handleError(c, ErrUnauthenticated)
	}

	payload := new(PasswordChangeRequest)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password change parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Manager.ChangePassword(c.UserContext(), ac.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"message": "password changed"})
}

// InitRootRequest is the root bootstrap payload
type InitRootRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Phone    string `form:"phone" json:"phone"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r InitRootRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
	)
}

func (a *AuthController) InitRootPost(c *fiber.Ctx) error {
	payload := new(InitRootRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("init root parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var user *User
	msg := InitRootMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		OnResponse: func(u *User) {
			user = u
		},
	}

	initRoot := NewInitRootHandler(a.Repo, a.Config)
	if err := initRoot.Execute(c.UserContext(), msg); err != nil {
		return a.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

func (a *AuthController) authContext(c *fiber.Ctx) (*AuthContext, bool) {
	ac, ok := c.Locals(a.ContextKey).(*AuthContext)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}

// handleError converts any failure into a response from the error
// taxonomy. Auth failures share one opaque body; forbidden bootstrap
// rejections carry their reason; everything unclassified is a bare 500.
func (a *AuthController) handleError(c *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		rich = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := rich.Code
	if status < fiber.StatusBadRequest {
		status = fiber.StatusInternalServerError
	}

	switch rich.Category {
	case goerrors.CategoryAuth:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	case goerrors.CategoryAuthz:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": rich.Message,
		})
	case goerrors.CategoryNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": rich.Message,
		})
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": rich.Message,
		})
	default:
		a.Logger.Error("unhandled controller error",
			"error", rich.Message,
			"category", rich.Category,
		)
		return c.Status(status).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// ValidatePhoneNumber is an ozzo rule that accepts empty values and
// otherwise requires a parseable, valid number.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("invalid phone number")
	}

	return nil
}
