package app

import (
	"github.com/carousell/ct-go/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/github"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
	"github.com/SnippyKid/OmegaChat-sub000/internal/server"
	"github.com/SnippyKid/OmegaChat-sub000/internal/socket"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", "addr", conf.Server.Addr, "database", conf.Database.Database)
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newLLMProvider,
			newModelCache,
			newGithubClient,
			newHub,
			newBroadcaster,
			newAuthUsecase,

			server.NewController,
			server.NewSocketHandler,

			usecase.NewRoomUsecase,
			usecase.NewMessageUsecase,
			usecase.NewAIUsecase,
			usecase.NewBotUsecase,

			mongodb.NewRoomRepository,
			mongodb.NewUserRepository,
			mongodb.NewProjectRepository,
		),
		fx.Supply(conf),
		fx.Invoke(EnsureIndexes),
		fx.Invoke(funcs...),
	)
}

func newHub(userRepo mongodb.UserRepository) *socket.Hub {
	return socket.NewHub(userRepo)
}

func newAuthUsecase(userRepo mongodb.UserRepository, conf *config.Config) usecase.AuthUsecase {
	return usecase.NewAuthUsecase(userRepo, conf.Auth.JWTSecret)
}

func newGithubClient(conf *config.Config) github.Client {
	return github.NewClient(conf.GitHub.Token)
}
