// Package api serves the session runner over HTTP for the map pages.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/runner"
	"github.com/AbelMP17/OnlyNadesV2/store"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

type server struct {
	svc    runner.Service
	logger *zap.Logger
}

// NewRouter exposes svc under /api. reg may be nil, in which case neither
// request metrics nor /metrics are served.
func NewRouter(svc runner.Service, reg *metrics.Registry, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), cors(), requestMetrics(reg), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if reg != nil {
		r.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	maps := r.Group("/api/maps/:slug")
	maps.GET("/clusters", s.getClusters)
	maps.GET("/near", s.findNear)
	maps.GET("/snapshots", s.listSnapshots)
	maps.POST("/snapshots", s.saveSnapshot)

	sessions := r.Group("/api/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getState)
	sessions.DELETE("/:id", s.closeSession)
	sessions.POST("/:id/pointer", s.pointerDown)
	sessions.POST("/:id/clusters/:key/click", s.clickCluster)
	sessions.POST("/:id/origins/:record/click", s.clickOrigin)
	sessions.POST("/:id/hover", s.hover)
	sessions.PUT("/:id/container", s.resize)
	sessions.PUT("/:id/step", s.setStep)
	sessions.PUT("/:id/filter", s.setFilter)
	sessions.POST("/:id/reload", s.reload)

	return r
}

// fail writes err with the status its kind maps to.
func (s *server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, runner.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, runner.ErrInvalidArgument), errors.Is(err, store.ErrInvalidSlug):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		c.Error(err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (s *server) badRequest(c *gin.Context, err error) {
	s.fail(c, fmt.Errorf("%w: %w", runner.ErrInvalidArgument, err))
}

// bind decodes the JSON body into req and checks its validate tags.
func (s *server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.badRequest(c, err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		s.badRequest(c, err)
		return false
	}
	return true
}

func queryFloat(c *gin.Context, name string, required bool) (float64, bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		if required {
			return 0, false, fmt.Errorf("missing %s parameter", name)
		}
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s parameter", name)
	}
	return v, true, nil
}

func (s *server) respond(c *gin.Context, resp any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) getClusters(c *gin.Context) {
	bucket, _, err := queryFloat(c, "bucket", false)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	resp, err := s.svc.GetClusters(c.Request.Context(), &runner.ClustersRequest{
		MapSlug:    c.Param("slug"),
		Filter:     cluster.Filter{Type: c.Query("type"), Side: c.Query("side")},
		BucketSize: bucket,
	})
	s.respond(c, resp, err)
}

func (s *server) findNear(c *gin.Context) {
	x, _, err := queryFloat(c, "x", true)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	y, _, err := queryFloat(c, "y", true)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	req := &runner.NearRequest{MapSlug: c.Param("slug"), Point: cluster.Point{X: x, Y: y}}
	threshold, ok, err := queryFloat(c, "threshold", false)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	if ok {
		req.Threshold = &threshold
	}
	resp, err := s.svc.FindNear(c.Request.Context(), req)
	s.respond(c, resp, err)
}

func (s *server) listSnapshots(c *gin.Context) {
	resp, err := s.svc.ListSnapshots(c.Request.Context(), &runner.ListSnapshotsRequest{MapSlug: c.Param("slug")})
	s.respond(c, resp, err)
}

func (s *server) saveSnapshot(c *gin.Context) {
	var body struct {
		Records []cluster.Record `json:"records" validate:"required,dive"`
	}
	if !s.bind(c, &body) {
		return
	}
	resp, err := s.svc.SaveSnapshot(c.Request.Context(), &runner.SaveSnapshotRequest{
		MapSlug: c.Param("slug"),
		Records: body.Records,
	})
	if err == nil {
		s.logger.Info("saved snapshot", zap.String("map", resp.Snapshot.MapSlug), zap.Int("records", resp.Snapshot.NumRecords))
	}
	s.respond(c, resp, err)
}

func (s *server) createSession(c *gin.Context) {
	var req runner.CreateSessionRequest
	if !s.bind(c, &req) {
		return
	}
	resp, err := s.svc.CreateSession(c.Request.Context(), &req)
	s.respond(c, resp, err)
}

func (s *server) getState(c *gin.Context) {
	resp, err := s.svc.GetState(c.Request.Context(), &runner.SessionRequest{SessionID: c.Param("id")})
	s.respond(c, resp, err)
}

func (s *server) closeSession(c *gin.Context) {
	_, err := s.svc.CloseSession(c.Request.Context(), &runner.SessionRequest{SessionID: c.Param("id")})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) pointerDown(c *gin.Context) {
	var req runner.PointerRequest
	if !s.bind(c, &req) {
		return
	}
	req.SessionID = c.Param("id")
	resp, err := s.svc.PointerDown(c.Request.Context(), &req)
	s.respond(c, resp, err)
}

func (s *server) clickCluster(c *gin.Context) {
	resp, err := s.svc.ClickCluster(c.Request.Context(), &runner.ClickClusterRequest{
		SessionID: c.Param("id"),
		Key:       c.Param("key"),
	})
	s.respond(c, resp, err)
}

func (s *server) clickOrigin(c *gin.Context) {
	resp, err := s.svc.ClickOrigin(c.Request.Context(), &runner.ClickOriginRequest{
		SessionID: c.Param("id"),
		RecordID:  c.Param("record"),
	})
	s.respond(c, resp, err)
}

func (s *server) hover(c *gin.Context) {
	var req runner.HoverRequest
	if !s.bind(c, &req) {
		return
	}
	req.SessionID = c.Param("id")
	resp, err := s.svc.Hover(c.Request.Context(), &req)
	s.respond(c, resp, err)
}

func (s *server) resize(c *gin.Context) {
	var rect coords.Rect
	if !s.bind(c, &rect) {
		return
	}
	resp, err := s.svc.ResizeContainer(c.Request.Context(), &runner.ResizeRequest{
		SessionID: c.Param("id"),
		Container: rect,
	})
	s.respond(c, resp, err)
}

func (s *server) setStep(c *gin.Context) {
	var req runner.StepRequest
	if !s.bind(c, &req) {
		return
	}
	req.SessionID = c.Param("id")
	resp, err := s.svc.SetStep(c.Request.Context(), &req)
	s.respond(c, resp, err)
}

func (s *server) setFilter(c *gin.Context) {
	var filter cluster.Filter
	if !s.bind(c, &filter) {
		return
	}
	resp, err := s.svc.SetFilter(c.Request.Context(), &runner.FilterRequest{
		SessionID: c.Param("id"),
		Filter:    filter,
	})
	s.respond(c, resp, err)
}

func (s *server) reload(c *gin.Context) {
	resp, err := s.svc.Reload(c.Request.Context(), &runner.SessionRequest{SessionID: c.Param("id")})
	s.respond(c, resp, err)
}
