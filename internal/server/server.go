package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/carousell/ct-go/pkg/logger"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	pkgmdw "github.com/SnippyKid/OmegaChat-sub000/internal/server/middleware"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
	socketHandler *SocketHandler,
	authUsecase usecase.AuthUsecase,
) {
	e := echo.New()
	e.HideBanner = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = errorHandler()

	logConfig := pkgmdw.LogRequestConfig{
		Logger: logger.MustNamed("http"),
		Enabled: func(c echo.Context) bool {
			uri := c.Request().RequestURI
			return uri != "/health" && uri != "/metrics"
		},
	}

	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(pkgmdw.CORS(regexp.MustCompile(conf.Server.CORSPattern)))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return nil
		},
	}))

	e.GET("/health", handler.Health)
	e.GET("/ws", socketHandler.Handle)
	e.POST("/webhooks/github", handler.GithubWebhook)

	api := e.Group("/api/v1")
	api.POST("/auth/login", handler.Login)

	rooms := api.Group("/rooms", pkgmdw.JWTAuth(authUsecase))
	rooms.POST("", handler.CreateRoom)
	rooms.GET("", handler.ListRooms)
	rooms.POST("/join-by-code", handler.JoinByInviteCode)
	rooms.GET("/:id", handler.GetRoom)
	rooms.DELETE("/:id", handler.DeleteRoom)
	rooms.POST("/:id/join", handler.JoinRoom)
	rooms.POST("/:id/leave", handler.LeaveRoom)
	rooms.GET("/:id/invite", handler.InviteCode)
	rooms.POST("/:id/upload", handler.UploadAttachment)

	rooms.GET("/:id/messages", handler.ListMessages)
	rooms.POST("/:id/messages", handler.SendMessage)
	rooms.GET("/:id/messages/search", handler.SearchMessages)
	rooms.PUT("/:id/messages/:messageId", handler.EditMessage)
	rooms.DELETE("/:id/messages/:messageId", handler.DeleteMessage)
	rooms.POST("/:id/messages/:messageId/reactions", handler.ToggleReaction)
	rooms.POST("/:id/messages/:messageId/star", handler.ToggleStar)
	rooms.POST("/:id/messages/:messageId/pin", handler.TogglePin)
	rooms.POST("/:id/messages/:messageId/read", handler.MarkRead)
	rooms.POST("/:id/messages/:messageId/forward", handler.ForwardMessage)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}
