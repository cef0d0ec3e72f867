package api

import (
	"github.com/fieldmapless/synb0/internal/volume"
)

// PredictionResponse is the JSON projection of a prediction job.
type PredictionResponse struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	Status      string          `json:"status"`
	CreatedAt   int64           `json:"created_at"`
	CompletedAt *int64          `json:"completed_at,omitempty"`
	Batch       bool            `json:"batch"`
	BatchSize   int             `json:"batch_size,omitempty"`
	Shape       []int           `json:"shape,omitempty"`
	Summary     *volume.Summary `json:"summary,omitempty"`
	Error       *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

// ModelResponse describes the loaded network for GET /v1/model.
type ModelResponse struct {
	Object      string `json:"object"`
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	InputShape  []int  `json:"input_shape"`
	OutputShape []int  `json:"output_shape"`
	Parameters  int    `json:"parameters"`
	WeightsPath string `json:"weights_path,omitempty"`
	Loaded      bool   `json:"loaded"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type DeletePredictionResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

func predictionResponse(job Job) PredictionResponse {
	resp := PredictionResponse{
		ID:        job.ID,
		Object:    "prediction",
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Unix(),
		Batch:     job.Batch,
		BatchSize: job.BatchSize,
	}
	if !job.CompletedAt.IsZero() {
		completedAt := job.CompletedAt.Unix()
		resp.CompletedAt = &completedAt
	}
	if job.Result != nil {
		resp.Shape = append([]int(nil), job.Result.Shape...)
		summary := volume.Summarize(job.Result.Data)
		resp.Summary = &summary
	}
	if job.Err != nil {
		resp.Error = &ResponseError{
			Message: job.Err.Error(),
			Type:    errorType(job.Err),
		}
	}
	return resp
}
