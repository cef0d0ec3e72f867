package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldmapless/synb0/internal/inference"
	"github.com/fieldmapless/synb0/internal/logger"
	"github.com/fieldmapless/synb0/internal/version"
	"github.com/fieldmapless/synb0/internal/volume"
)

// Predictor runs the synthetic b0 pipeline for one request.
type Predictor interface {
	Predict(ctx context.Context, b0, t1 *volume.Volume, opts inference.PredictOptions) (*volume.Volume, error)
}

type Server struct {
	predictor Predictor
	store     *JobStore
	model     ModelResponse
	log       logger.Logger
	clock     func() time.Time
}

func NewServer(predictor Predictor, store *JobStore, model ModelResponse, log logger.Logger) *Server {
	if store == nil {
		store = NewJobStore()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		predictor: predictor,
		store:     store,
		model:     model,
		log:       log,
		clock:     time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	// Prediction API
	e.POST("/v1/predictions", s.handleCreatePrediction)
	e.GET("/v1/predictions/:id", s.handleGetPrediction)
	e.GET("/v1/predictions/:id/volume", s.handleDownloadVolume)
	e.DELETE("/v1/predictions/:id", s.handleDeletePrediction)
	e.GET("/v1/model", s.handleModel)

	// Operational endpoints
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)
}

func (s *Server) handleCreatePrediction(c *echo.Context) error {
	if s.predictor == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "predictor not configured")
	}
	b0, err := readVolumePart(c, "b0")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	t1, err := readVolumePart(c, "t1")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var opts inference.PredictOptions
	if raw := c.FormValue("batch_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return writeBadRequest(c, "batch_size must be a positive integer")
		}
		opts.BatchSize = n
	}

	background := c.FormValue("background") == "true"
	job := s.store.Create(b0.Rank() == 4, opts.BatchSize, s.clock())
	s.log.Info("prediction accepted",
		"id", job.ID,
		"samples", b0.Batch(),
		"background", background,
	)

	if background {
		go s.runJob(job.ID, b0, t1, opts)
		return c.JSON(http.StatusAccepted, predictionResponse(job))
	}

	out, err := s.predict(c.Request().Context(), job.ID, b0, t1, opts)
	if err != nil {
		return writeError(c, errorStatus(err), errorType(err), err.Error())
	}
	if wantsJSON(c) {
		done, _ := s.store.Get(job.ID)
		return c.JSON(http.StatusOK, predictionResponse(done))
	}
	return s.streamVolume(c, job.ID, out)
}

func (s *Server) handleGetPrediction(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "prediction not found")
	}
	job, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "prediction not found")
	}
	return c.JSON(http.StatusOK, predictionResponse(job))
}

func (s *Server) handleDownloadVolume(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "prediction not found")
	}
	job, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "prediction not found")
	}
	switch job.Status {
	case StatusCompleted:
		return s.streamVolume(c, job.ID, job.Result)
	case StatusFailed:
		return writeError(c, http.StatusConflict, errorType(job.Err), job.Err.Error())
	default:
		return writeError(c, http.StatusConflict, "invalid_request_error", "prediction is "+job.Status)
	}
}

func (s *Server) handleDeletePrediction(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "prediction not found")
	}
	if !s.store.Delete(id) {
		return writeNotFound(c, "prediction not found")
	}
	return c.JSON(http.StatusOK, DeletePredictionResp{
		ID:      id,
		Object:  "prediction",
		Deleted: true,
	})
}

func (s *Server) handleModel(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.model)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
	})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) runJob(id string, b0, t1 *volume.Volume, opts inference.PredictOptions) {
	_, _ = s.predict(context.Background(), id, b0, t1, opts)
}

// predict runs the pipeline for a stored job and records the outcome on the
// job, the metrics and the log. Both the synchronous handler and background
// jobs go through here.
func (s *Server) predict(ctx context.Context, id string, b0, t1 *volume.Volume, opts inference.PredictOptions) (*volume.Volume, error) {
	s.store.SetRunning(id)
	start := s.clock()
	out, err := s.predictor.Predict(ctx, b0, t1, opts)
	if err != nil {
		s.store.Fail(id, err, s.clock())
		recordPredictionError(errorType(err))
		s.log.Error("prediction failed", "id", id, "error", err)
		return nil, err
	}
	s.store.Complete(id, out, s.clock())
	recordPrediction(b0.Batch(), s.clock().Sub(start))
	s.log.Info("prediction completed",
		"id", id,
		"samples", b0.Batch(),
		"duration", s.clock().Sub(start),
	)
	return out, nil
}

// streamVolume writes the predicted volume as a gzipped NIfTI attachment.
func (s *Server) streamVolume(c *echo.Context, id string, v *volume.Volume) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/gzip")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="b0_synthetic.nii.gz"`)
	res.Header().Set("X-Prediction-Id", id)
	res.WriteHeader(http.StatusOK)

	zw := gzip.NewWriter(res)
	if err := volume.ToImage(v).Encode(zw); err != nil {
		return err
	}
	return zw.Close()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, volume.ErrShape):
		return "shape_error"
	case errors.Is(err, inference.ErrPrediction):
		return "prediction_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "server_error"
	}
}

func errorStatus(err error) int {
	if errors.Is(err, volume.ErrShape) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
