package router

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"todoapp/internal/config"
	"todoapp/internal/errors"
	"todoapp/internal/handler"
	mw "todoapp/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth   *handler.AuthHandler
	Tasks  *handler.TaskHandler
	Admin  *handler.AdminHandler
	Health *handler.HealthHandler
}

// Middlewares groups the gates and limiters built by the caller.
type Middlewares struct {
	UserAuth     echo.MiddlewareFunc
	AdminAuth    echo.MiddlewareFunc
	AuthLimit    echo.MiddlewareFunc
	GeneralLimit echo.MiddlewareFunc
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, h Handlers, m Middlewares, log zerolog.Logger) {
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(log)
	e.Validator = NewValidator()
	e.IPExtractor = IPExtractor(cfg)

	e.Use(middleware.RequestID())
	e.Use(mw.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", h.Health.Live)
	e.GET("/readyz", h.Health.Ready)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if cfg.StaticDir != "" {
		e.Static("/", cfg.StaticDir)
	}

	api := e.Group("/api", m.GeneralLimit)

	// Public routes
	api.POST("/signup", h.Auth.Signup, m.AuthLimit)
	api.POST("/login", h.Auth.Login, m.AuthLimit)
	api.POST("/admin/signup", h.Admin.Signup, m.AuthLimit)
	api.POST("/admin/login", h.Admin.Login, m.AuthLimit)

	// Task routes
	tasks := api.Group("/tasks", m.UserAuth)
	tasks.GET("", h.Tasks.List)
	tasks.POST("", h.Tasks.Create)
	tasks.POST("/reorder", h.Tasks.Reorder)
	tasks.PUT("/:id", h.Tasks.Update)
	tasks.DELETE("/:id", h.Tasks.Delete)

	// Admin routes
	admin := api.Group("/admin", m.AdminAuth)
	admin.GET("/dashboard", h.Admin.Dashboard)
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/user/:username/tasks", h.Admin.UserTasks)
	admin.POST("/reset-password", h.Admin.ResetPassword)
	admin.DELETE("/user/:username", h.Admin.DeleteUser)
	admin.DELETE("/delete-user/:username", h.Admin.DeleteUser)
}

// IPExtractor identifies clients by socket address unless trusted proxies
// are configured; only then is X-Forwarded-For read, and only hops inside
// those ranges are skipped.
func IPExtractor(cfg *config.Config) echo.IPExtractor {
	ranges, _ := cfg.TrustedProxyRanges()
	if len(ranges) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range ranges {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// ErrorHandler renders every error as {"error", "code"}.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := toResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}

func toResponse(err error) (int, errors.ErrorResponse) {
	var appErr *errors.HTTPError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, appErr.ToErrorResponse()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch msg := he.Message.(type) {
		case errors.ErrorResponse:
			return he.Code, msg
		case string:
			return he.Code, errors.ErrorResponse{Error: msg, Code: statusCode(he.Code)}
		default:
			text := http.StatusText(he.Code)
			return he.Code, errors.ErrorResponse{Error: text, Code: statusCode(he.Code)}
		}
	}

	httpErr := errors.MapErrorToHTTP(err)
	return httpErr.StatusCode, httpErr.ToErrorResponse()
}

// statusCode derives a response code from an HTTP status, e.g. 404 -> NOT_FOUND.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports fields by their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
