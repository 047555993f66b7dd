package session

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterPortalRoutes mounts the portal's session routes on app.
func RegisterPortalRoutes[T any](app router.Router[T], opts ...PortalControllerOption) {
	controller := NewPortalController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Get(controller.Routes.SignUp, controller.SignUpShow).
		SetName("sign-up.get")
	app.Post(controller.Routes.SignUp, controller.SignUpPost).
		SetName("sign-up.post")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(controller.Routes.Apply, controller.ApplyShow).
		SetName("apply.get")
	app.Post(controller.Routes.Apply, controller.ApplyPost).
		SetName("apply.post")
}

type PortalControllerRoutes struct {
	Login         string
	Logout        string
	SignUp        string
	PasswordReset string
	Apply         string
}

type PortalControllerViews struct {
	Login         string
	SignUp        string
	PasswordReset string
	Apply         string
}

// PortalController serves the portal's session flows: login, logout, sign-up,
// password reset, and the influencer apply form.
type PortalController struct {
	Debug        bool
	Logger       Logger
	Manager      *Manager
	Guard        *RouteGuard
	Activity     ActivitySink
	Routes       *PortalControllerRoutes
	Views        *PortalControllerViews
	ErrorHandler func(c router.Context, err error) error
}

type PortalControllerOption func(*PortalController) *PortalController

// WithPortalManager sets the session manager. Required.
func WithPortalManager(m *Manager) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Manager = m
		return c
	}
}

// WithPortalGuard sets the route guard used for post-login redirects.
// Required.
func WithPortalGuard(g *RouteGuard) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Guard = g
		return c
	}
}

// WithPortalActivity sets the activity sink for the apply flow.
func WithPortalActivity(sink ActivitySink) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Activity = sink
		return c
	}
}

// WithPortalLogger sets the controller logger.
func WithPortalLogger(logger Logger) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithPortalDebug toggles payload dumps on POST handlers.
func WithPortalDebug(debug bool) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Debug = debug
		return c
	}
}

func NewPortalController(opts ...PortalControllerOption) *PortalController {
	c := &PortalController{
		Logger: defLogger{},
		Routes: &PortalControllerRoutes{
			Login:         "/login",
			Logout:        "/logout",
			SignUp:        "/signup",
			PasswordReset: "/password-reset",
			Apply:         "/apply-now",
		},
		Views: &PortalControllerViews{
			Login:         "login",
			SignUp:        "signup",
			PasswordReset: "password_reset",
			Apply:         "apply",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing Manager in portal controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in portal controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Guard.ErrorHandler
	}

	c.Activity = normalizeActivitySink(c.Activity)

	return c
}

func (a *PortalController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
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

func (a *PortalController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= PORTAL LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	if err := a.Manager.SignIn(ctx.Context(), payload.Email, payload.Password); err != nil {
		// the provider's machine codes stay server side, the form always
		// shows the same message for bad credentials
		a.Logger.Error("login failed: ", "error", err)
		errors["authentication"] = "Check your credentials and try again"
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	redirect := a.Guard.GetRedirect(ctx, a.Guard.Routes().Dashboard)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *PortalController) LogOut(ctx router.Context) error {
	if err := a.Manager.SignOut(ctx.Context()); err != nil {
		a.Logger.Error("logout failed: ", "error", err)
	}
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *PortalController) SignUpShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignUp, router.ViewContext{
		"errors": map[string]string{},
		"record": SignUpRequest{},
	})
}

// SignUpRequest is the sign-up form payload.
type SignUpRequest struct {
	DisplayName     string `form:"display_name" json:"display_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *PortalController) SignUpPost(ctx router.Context) error {
	payload := new(SignUpRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign up parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.SignUp, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("sign up validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.SignUp, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= PORTAL SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	if err := a.Manager.SignUp(ctx.Context(), payload.Email, payload.Password, payload.DisplayName); err != nil {
		a.Logger.Error("sign up error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error creating account",
		}).Render(a.Views.SignUp, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"registration": "Unable to create your account"},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Welcome to HiveCash",
	}).Redirect(a.Guard.Routes().Dashboard, fiber.StatusSeeOther)
}

func (a *PortalController) PasswordResetShow(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"sent":   false,
	})
}

// PasswordResetRequest holds values for password reset
type PasswordResetRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *PortalController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Manager.Provider(), a.Activity)

	req := InitializePasswordResetMessage{Email: payload.Email}

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		// same response either way so the form does not leak which emails
		// have accounts
		a.Logger.Error("password reset error: ", "error", err)
	}

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"sent":   true,
		"email":  payload.Email,
	})
}

func (a *PortalController) ApplyShow(ctx router.Context) error {
	return ctx.Render(a.Views.Apply, router.ViewContext{
		"errors": map[string]string{},
		"record": ApplyRequest{},
	})
}

// ApplyRequest is the influencer application form payload.
type ApplyRequest struct {
	FullName     string `form:"full_name" json:"full_name"`
	Email        string `form:"email" json:"email"`
	Phone        string `form:"phone" json:"phone"`
	PhoneRegion  string `form:"phone_region" json:"phone_region"`
	SocialHandle string `form:"social_handle" json:"social_handle"`
	Platform     string `form:"platform" json:"platform"`
}

// Validate will validate the payload
func (r ApplyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.By(ValidatePhoneNumber(r.PhoneRegion))),
		validation.Field(&r.SocialHandle, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Platform, validation.Required, validation.In(
			"instagram", "tiktok", "youtube", "twitch",
		)),
	)
}

func (a *PortalController) ApplyPost(ctx router.Context) error {
	payload := new(ApplyRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("apply parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Apply, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("apply validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Apply, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	submit := NewSubmitApplicationHandler(a.Manager.Profiles(), a.Activity)

	req := SubmitApplicationMessage{
		FullName:     payload.FullName,
		Email:        payload.Email,
		Phone:        payload.Phone,
		PhoneRegion:  payload.PhoneRegion,
		SocialHandle: payload.SocialHandle,
		Platform:     payload.Platform,
	}

	if err := submit.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("apply submit error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error submitting application",
		}).Render(a.Views.Apply, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"application": "Unable to submit your application"},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Application received, we will be in touch",
	}).Redirect("/", fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber checks the value parses as a real phone number.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return fmt.Errorf("must be a valid phone number")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for templates.
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

	out["form"] = err.Error()
	return out
}
