package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jnfrati/replq/internal/logger"
	"github.com/jnfrati/replq/internal/queue"
	"github.com/jnfrati/replq/pkg/session"
)

func handleErr(ctx *gin.Context, status int, err error) {
	logger.Global.Error().
		Str("method", ctx.Request.Method).
		Str("url.path", ctx.Request.URL.Path).
		Err(err).
		Msgf("error occured while processing the request")

	ctx.JSON(status, gin.H{
		"error": err.Error(),
	})
}

type EvalRequest struct {
	Code string `json:"code" binding:"required"`
}

func Start(ctx context.Context, addr string, s *session.Session) error {

	r := gin.Default()

	r.POST("/v0/eval", func(ctx *gin.Context) {
		req := new(EvalRequest)

		if err := ctx.ShouldBindBodyWithJSON(req); err != nil {
			handleErr(ctx, http.StatusBadRequest, err)
			return
		}

		if err := s.Submit(req.Code); err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				handleErr(ctx, http.StatusConflict, err)
				return
			}
			handleErr(ctx, http.StatusInternalServerError, err)
			return
		}

		ctx.JSON(http.StatusAccepted, gin.H{
			"session_id": s.Id(),
		})
	})

	r.GET("/v0/evals", func(ctx *gin.Context) {
		evals, err := s.History(ctx, 100, 0)
		if err != nil {
			handleErr(ctx, http.StatusInternalServerError, err)
			return
		}

		ctx.JSON(http.StatusOK, evals)
	})

	r.GET("/v0/status", func(ctx *gin.Context) {
		size, closed := s.Stats()

		ctx.JSON(http.StatusOK, gin.H{
			"session_id": s.Id(),
			"queued":     size,
			"closed":     closed,
		})
	})

	r.POST("/v0/close", func(ctx *gin.Context) {
		s.Close()

		ctx.JSON(http.StatusOK, gin.H{
			"closed": true,
		})
	})

	srv := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.Global.Info().Msgf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Global.Error().Err(err).Msg("API server failed to start")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Global.Info().Msg("Shutting down API server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Global.Error().Err(err).Msg("API server forced to shutdown")
		return err
	}

	logger.Global.Info().Msg("API server gracefully stopped")
	return nil
}
