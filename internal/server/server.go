package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"relay-chat/config"
	"relay-chat/internal/auth"
	"relay-chat/internal/handler"
	"relay-chat/internal/middleware"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/internal/websocket"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Users    *handler.UserHandler
	Chats    *handler.ChatHandler
	Messages *handler.MessageHandler
	Blocks   *handler.BlockHandler
	Stream   *websocket.Handler
}

// RouteDeps are the cross-cutting pieces the routes need besides the
// handlers. Limiter and Health may be nil.
type RouteDeps struct {
	Verifier auth.TokenVerifier
	Limiter  middleware.MessageLimiter
	Health   func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps RouteDeps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// the stream authenticates itself from the query string
	s.engine.GET("/v1/ws", handlers.Stream.Connect)

	authed := middleware.AuthMiddleware(deps.Verifier)
	limited := middleware.MessageRateLimitMiddleware(deps.Limiter)

	users := s.engine.Group("/v1/users", authed)
	{
		users.POST("", handlers.Users.SignUp)
		users.GET("/me", handlers.Users.Me)
		users.PATCH("/me", handlers.Users.UpdateMe)
		users.DELETE("/me", handlers.Users.DeleteMe)
		users.GET("/search", handlers.Users.Search)
		users.POST("/me/push-tokens", handlers.Users.AddPushToken)
		users.DELETE("/me/push-tokens", handlers.Users.RemovePushToken)
	}

	chats := s.engine.Group("/v1/chats", authed)
	{
		chats.POST("", handlers.Chats.Create)
		chats.GET("/:id", handlers.Chats.Get)
		chats.PATCH("/:id", handlers.Chats.Update)
		chats.GET("/:id/blocked", handlers.Chats.Blocked)
		chats.POST("/:id/members", handlers.Chats.AddMembers)
		chats.DELETE("/:id/members/:uid", handlers.Chats.RemoveMember)
		chats.POST("/:id/messages", limited, handlers.Messages.Send)
		chats.POST("/:id/images", limited, handlers.Messages.SendImage)
		chats.POST("/:id/messages/:messageId/star", handlers.Messages.Star)
	}

	blocks := s.engine.Group("/v1/blocks", authed)
	{
		blocks.GET("", handlers.Blocks.List)
		blocks.PUT("/:uid", handlers.Blocks.Block)
		blocks.DELETE("/:uid", handlers.Blocks.Unblock)
	}
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil && s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
