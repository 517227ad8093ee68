package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/agenthands/canon/internal/core"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/progress"
	"github.com/agenthands/canon/internal/core/review"
	"github.com/agenthands/canon/internal/errs"
	"github.com/agenthands/canon/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Canon   *core.Canon
	Reviews *review.Service
	Hub     *progress.Hub
	Log     *logger.Logger
}

func NewServer(app *App) *Server {
	return &Server{
		Canon:   app.Canon,
		Reviews: app.Reviews,
		Hub:     app.Hub,
		Log:     app.Log.With("component", "HTTPServer"),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/runs", s.StartRun)
	r.GET("/runs/:id", s.GetRun)
	r.DELETE("/runs/:id", s.CancelRun)
	r.GET("/runs/:id/events", s.StreamRun)

	r.GET("/reviews/:id", s.GetReview)
	r.PATCH("/reviews/:id/items", s.DecideReview)
	r.POST("/reviews/:id/apply", s.ApplyReview)

	return r
}

// Serve runs the HTTP server until ctx ends, then shuts it down gracefully.
func (s *Server) Serve(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("starting server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type StartRunRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) StartRun(c *gin.Context) {
	var req StartRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	mode, ok := core.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be direct or review"})
		return
	}

	info, err := s.Canon.Start(mode)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, info)
}

func (s *Server) GetRun(c *gin.Context) {
	info, err := s.Canon.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) CancelRun(c *gin.Context) {
	if err := s.Canon.Cancel(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// StreamRun sends progress events as server-sent events until the run is
// done or the client leaves. A finished run gets a single done event.
func (s *Server) StreamRun(c *gin.Context) {
	id := c.Param("id")
	sub := s.Hub.Subscribe(id)
	defer s.Hub.Unsubscribe(sub)

	info, err := s.Canon.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if info.Finished() {
		c.SSEvent(string(model.PhaseDone), doneEvent(info))
		return
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Outbound:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Phase), ev)
			return ev.Phase != model.PhaseDone
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func doneEvent(info core.RunInfo) model.ProgressEvent {
	ev := model.ProgressEvent{
		RunID:  info.ID,
		Phase:  model.PhaseDone,
		Status: info.Status,
		Error:  info.Error,
	}
	if info.Result != nil {
		ev.Iteration = info.Result.Iterations
		ev.Totals = info.Result.Totals
	}
	if info.FinishedAt != nil {
		ev.At = *info.FinishedAt
	}
	return ev
}

func (s *Server) GetReview(c *gin.Context) {
	r, err := s.Reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DecisionRequest sets one item's decision, or every item's when Key is
// empty.
type DecisionRequest struct {
	Key      string `json:"key"`
	Decision string `json:"decision" binding:"required"`
}

func (s *Server) DecideReview(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	d, ok := review.ParseDecision(req.Decision)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be pending, approved or rejected"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	var err error
	if req.Key == "" {
		err = s.Reviews.DecideAll(ctx, id, d)
	} else {
		err = s.Reviews.Decide(ctx, id, req.Key, d)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	r, err := s.Reviews.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) ApplyReview(c *gin.Context) {
	report, err := s.Reviews.Apply(c.Request.Context(), c.Param("id"))
	if errors.Is(err, review.ErrPartialApply) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "report": report})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.Log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
