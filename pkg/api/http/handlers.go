package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/internal/application/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// StepRequest holds the optional query of POST /run/step.
type StepRequest struct {
	// Count runs up to this many rounds, stopping early when the run leaves
	// RunRunning.
	Count int `form:"count" binding:"omitempty,min=1,max=10000"`
}

// StepResponse reports the outcome of a step request.
type StepResponse struct {
	Result orchestrator.StepResult `json:"result"`
	Rounds int                     `json:"rounds"`
	Status session.Status          `json:"status"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	state := s.session.Orchestrator().State()
	pool := s.session.Orchestrator().Pool().Occupancy()

	healthy := state != orchestrator.RunError && (pool.Serving || state == orchestrator.RunCreated)
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"orchestrator": state,
			"worker_pool":  pool,
		},
	})
}

// handleGetRun returns the run status
func (s *Server) handleGetRun(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Status())
}

// handleStep runs one or more rounds. The rounds are detached from the
// request context so a dropped client cannot abort the run.
func (s *Server) handleStep(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	ctx := context.WithoutCancel(c.Request.Context())

	var (
		result orchestrator.StepResult
		rounds int
	)
	for rounds < req.Count {
		var err error
		result, err = s.session.Step(ctx)
		if err != nil {
			s.logger.Warn("step request failed", zap.Int("rounds", rounds), zap.Error(err))
			s.writeStepError(c, err)
			return
		}
		rounds++
		if result != orchestrator.ResultContinue || s.session.Orchestrator().State() != orchestrator.RunRunning {
			break
		}
	}

	c.JSON(http.StatusOK, StepResponse{
		Result: result,
		Rounds: rounds,
		Status: s.session.Status(),
	})
}

// handlePause pauses the run
func (s *Server) handlePause(c *gin.Context) {
	if err := s.session.Pause(); err != nil {
		s.writeStepError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.Status())
}

// handleResume resumes the run
func (s *Server) handleResume(c *gin.Context) {
	if err := s.session.Resume(); err != nil {
		s.writeStepError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.Status())
}

// handleListModels lists registered models in registration order
func (s *Server) handleListModels(c *gin.Context) {
	models := s.session.Status().Models
	c.JSON(http.StatusOK, gin.H{
		"models": models,
		"total":  len(models),
	})
}

// handleGetModel returns one registered model
func (s *Server) handleGetModel(c *gin.Context) {
	reg, ok := s.session.Orchestrator().Registration(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Model not found",
			},
		})
		return
	}
	c.JSON(http.StatusOK, reg.Info())
}

// handleGetContext returns the shared context, or a single key with ?key=.
func (s *Server) handleGetContext(c *gin.Context) {
	values := s.session.Snapshot()
	step := s.session.Orchestrator().CurrentStep()

	if key, ok := c.GetQuery("key"); ok {
		v, found := values[key]
		if !found {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Key not found",
					Details: gin.H{"key": key},
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"step": step, "key": key, "value": v})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"step":   step,
		"values": values,
	})
}

// writeStepError maps orchestrator errors to HTTP responses.
func (s *Server) writeStepError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrDisposed):
		s.writeError(c, http.StatusGone, "DISPOSED", err)
	case errors.Is(err, orchestrator.ErrInvalidState):
		s.writeError(c, http.StatusConflict, "INVALID_STATE", err)
	case errors.Is(err, orchestrator.ErrStep):
		s.writeError(c, http.StatusUnprocessableEntity, "STEP_FAILED", err)
	case errors.Is(err, orchestrator.ErrRoundAborted):
		s.writeError(c, http.StatusServiceUnavailable, "ROUND_ABORTED", err)
	default:
		s.writeError(c, http.StatusInternalServerError, "INTERNAL", err)
	}
}

func (s *Server) writeError(c *gin.Context, code int, errCode string, err error) {
	c.JSON(code, ErrorResponse{
		Error: ErrorDetail{
			Code:    errCode,
			Message: err.Error(),
		},
	})
}
