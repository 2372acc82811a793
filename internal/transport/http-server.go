package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/feed"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/service"
)

const (
	TokenHeader  = "X-Token"
	PreferHeader = "Prefer"

	userLocal = "user"
)

var Module = fx.Provide(NewHTTPServer)

type HTTPServer struct {
	app       *fiber.App
	service   *service.General
	hub       *feed.Hub
	validator *validator.Validate
	logger    *zap.SugaredLogger
	keepAlive time.Duration
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, svc *service.General, hub *feed.Hub, logger *zap.SugaredLogger) *HTTPServer {
	instance := newHTTPServer(svc, hub, cfg.SSEKeepAlive, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				logger.Infow("Starting HTTP server.", "addr", listen)
				if err := instance.app.Listen(listen); err != nil {
					logger.Fatalw("shutting down the server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			// open change streams only end once the hub closes their subscriptions
			hub.Close()
			return instance.app.Shutdown()
		},
	})

	return instance
}

func newHTTPServer(svc *service.General, hub *feed.Hub, keepAlive time.Duration, logger *zap.SugaredLogger) *HTTPServer {
	instance := &HTTPServer{
		service:   svc,
		hub:       hub,
		validator: validator.New(),
		logger:    logger,
		keepAlive: keepAlive,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          instance.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(instance.RequestLogger)
	app.Use(instance.AuthMiddleware)

	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	authG := app.Group("/auth")
	authG.Post("/register", instance.Register)
	authG.Post("/login", instance.Login)
	authG.Post("/logout", instance.Logout)
	authG.Get("/user", instance.CurrentUser)

	bookmarkG := app.Group("/bookmarks")
	bookmarkG.Get("", instance.BookmarkList)
	bookmarkG.Post("", instance.BookmarkCreate)
	bookmarkG.Get("/changes", instance.BookmarkChanges)
	bookmarkG.Delete("/:id", instance.BookmarkDelete)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNotFound)
	})

	instance.app = app
	return instance
}

func (s *HTTPServer) Register(c *fiber.Ctx) error {
	req := models.CredentialsReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.service.Register(req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(models.TokenResp{Token: token})
}

func (s *HTTPServer) Login(c *fiber.Ctx) error {
	req := models.CredentialsReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.service.Login(req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(models.TokenResp{Token: token})
}

func (s *HTTPServer) Logout(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	if err := s.service.Logout(user); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *HTTPServer) CurrentUser(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(models.Identity{
		ID:    user.ID,
		Email: user.Email,
	})
}

func (s *HTTPServer) BookmarkList(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	bookmarks, err := s.service.BookmarkList(user.ID)
	if err != nil {
		return err
	}
	return c.JSON(bookmarks)
}

// BookmarkCreate honours "Prefer: return=minimal" by answering without the created row.
func (s *HTTPServer) BookmarkCreate(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := models.BookmarkReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	created, err := s.service.BookmarkCreate(context.Background(), user.ID, req.Title, req.URL)
	if err != nil {
		return err
	}

	if strings.Contains(c.Get(PreferHeader), "return=minimal") {
		// SendStatus would fill the empty body with the status text
		return c.Status(http.StatusCreated).Send(nil)
	}
	return c.Status(http.StatusCreated).JSON(created)
}

func (s *HTTPServer) BookmarkDelete(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.service.BookmarkDelete(context.Background(), user.ID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *HTTPServer) AuthMiddleware(c *fiber.Ctx) error {
	switch c.Path() {
	case "/ping", "/auth/register", "/auth/login":
		return c.Next()
	}

	token := c.Get(TokenHeader)
	if token == "" {
		return c.SendStatus(http.StatusUnauthorized)
	}
	user, err := s.service.UserByToken(token)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidToken) {
			s.logger.Errorw("find user in db", "error", err)
		}
		return c.SendStatus(http.StatusUnauthorized)
	}

	c.Locals(userLocal, user)
	return c.Next()
}

func (s *HTTPServer) RequestLogger(c *fiber.Ctx) error {
	start := time.Now()
	body := censorBody(c.Body())

	err := c.Next()

	fields := []interface{}{
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	}
	if len(body) > 0 {
		fields = append(fields, "body", string(body))
	}
	if err != nil {
		fields = append(fields, "error", err)
	}
	s.logger.Infow("request", fields...)
	return err
}

func (s *HTTPServer) ErrorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, service.ErrEmailTaken):
		code = http.StatusConflict
	case errors.Is(err, service.ErrLoginUserNotFound),
		errors.Is(err, service.ErrLoginPasswordDoesNotMatch),
		errors.Is(err, service.ErrInvalidToken):
		code = http.StatusUnauthorized
	case errors.Is(err, service.ErrBookmarkNotFound):
		code = http.StatusNotFound
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", c.Path(), "error", err)
		msg = http.StatusText(code)
	}
	return c.Status(code).JSON(models.ErrorResp{Error: msg})
}

////////

func (s *HTTPServer) BindAndValidate(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := s.validator.Struct(v); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c *fiber.Ctx) (*db.User, error) {
	user, ok := c.Locals(userLocal).(*db.User)
	if !ok || user == nil {
		return nil, errors.New("no user found in context")
	}
	return user, nil
}

func GetParam(c *fiber.Ctx, name string) (string, error) {
	value := c.Params(name)
	if value == "" {
		return "", fiber.NewError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c *fiber.Ctx, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}
