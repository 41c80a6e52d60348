package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-stockroom"
	"github.com/goliatone/go-stockroom/dashboard"
	"github.com/goliatone/go-stockroom/inventory"
	"github.com/goliatone/go-stockroom/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Session is the auth surface the server drives. *stockroom.Manager
// implements it.
type Session interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	SignUp(ctx context.Context, email, password string) (*stockroom.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ForgotPassword(ctx context.Context, email string) (*stockroom.CodeDelivery, error)
	ConfirmPassword(ctx context.Context, email, code, newPassword string) error
	State() stockroom.AuthState
	IsAuthenticated() bool
	IsLoading() bool
	User() (stockroom.UserProfile, bool)
}

// Items is the inventory surface. *inventory.Client implements it.
type Items interface {
	List(ctx context.Context) ([]inventory.Item, error)
	Get(ctx context.Context, itemID string) (*inventory.Item, error)
	Create(ctx context.Context, input inventory.ItemInput) (*inventory.Item, error)
	Update(ctx context.Context, patch inventory.ItemPatch) (*inventory.Item, error)
	Delete(ctx context.Context, itemID string) (*inventory.DeleteResult, error)
}

type Routes struct {
	Session         string
	Login           string
	Logout          string
	SignUp          string
	ConfirmSignUp   string
	ForgotPassword  string
	ConfirmPassword string
	Items           string
	Dashboard       string
	Metrics         string
}

// Option customizes the Server.
type Option func(*Server)

func WithLogger(logger stockroom.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer exposes the registry on the metrics route.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithLoginLimiter overrides the default login limiter.
func WithLoginLimiter(limiter *LoginLimiter) Option {
	return func(s *Server) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

// WithDashboardOptions sets the options passed to dashboard.Summarize.
func WithDashboardOptions(opts ...dashboard.Option) Option {
	return func(s *Server) {
		s.dashboard = append(s.dashboard, opts...)
	}
}

func WithRoutes(routes Routes) Option {
	return func(s *Server) {
		s.Routes = routes
	}
}

// Server wires the fiber application to a session and an inventory client.
type Server struct {
	Routes Routes

	session   Session
	items     Items
	logger    stockroom.Logger
	limiter   *LoginLimiter
	gatherer  prometheus.Gatherer
	dashboard []dashboard.Option
	app       *fiber.App
}

// New builds the server and registers its routes.
func New(session Session, items Items, opts ...Option) *Server {
	s := &Server{
		Routes: Routes{
			Session:         "/api/session",
			Login:           "/api/login",
			Logout:          "/api/logout",
			SignUp:          "/api/signup",
			ConfirmSignUp:   "/api/signup/confirm",
			ForgotPassword:  "/api/password/forgot",
			ConfirmPassword: "/api/password/confirm",
			Items:           "/api/items",
			Dashboard:       "/api/dashboard",
			Metrics:         "/metrics",
		},
		session: session,
		items:   items,
		logger:  nopLogger{},
		limiter: NewLoginLimiter(5),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "stockroom",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.register()

	return s
}

// App exposes the fiber application (used by tests and embedding).
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) register() {
	s.app.Get(s.Routes.Session, s.SessionShow)
	s.app.Post(s.Routes.Login, s.limiter.Middleware(), s.LoginPost)
	s.app.Post(s.Routes.Logout, s.LogoutPost)
	s.app.Post(s.Routes.SignUp, s.SignUpPost)
	s.app.Post(s.Routes.ConfirmSignUp, s.ConfirmSignUpPost)
	s.app.Post(s.Routes.ForgotPassword, s.ForgotPasswordPost)
	s.app.Post(s.Routes.ConfirmPassword, s.ConfirmPasswordPost)

	s.app.Get(s.Routes.Items, s.ItemsIndex)
	s.app.Post(s.Routes.Items, s.ItemsCreate)
	s.app.Get(s.Routes.Items+"/:id", s.ItemsShow)
	s.app.Put(s.Routes.Items+"/:id", s.ItemsUpdate)
	s.app.Delete(s.Routes.Items+"/:id", s.ItemsDelete)

	s.app.Get(s.Routes.Dashboard, s.DashboardShow)

	if s.gatherer != nil {
		s.app.Get(s.Routes.Metrics, adaptor.HTTPHandler(metrics.Handler(s.gatherer)))
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
