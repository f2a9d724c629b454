package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/amishk599/skillpiler/internal/analysis"
	"github.com/amishk599/skillpiler/internal/auth"
	"github.com/amishk599/skillpiler/internal/model"
)

type callbackRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req model.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.GitHubUsername = strings.TrimSpace(req.GitHubUsername)
	req.AccessToken = ""
	if err := s.validate.Struct(req); err != nil {
		s.fail(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	if req.IncludePrivate {
		login, _, err := s.auth.Authenticate(bearerToken(c))
		if err != nil {
			s.fail(c, http.StatusUnauthorized, "Authentication required for private repository analysis")
			return
		}
		if !strings.EqualFold(login, req.GitHubUsername) {
			s.fail(c, http.StatusForbidden, "Private repositories can only be analyzed for your own account")
			return
		}
		token, ok := s.auth.GitHubToken(login)
		if !ok {
			s.fail(c, http.StatusUnauthorized, "GitHub token not found, please log in again")
			return
		}
		req.AccessToken = token
	}

	job, err := s.svc.Submit(c.Request.Context(), req)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleStatus(c *gin.Context) {
	job, err := s.svc.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleResult(c *gin.Context) {
	result, err := s.svc.FetchResult(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTimeSeries(c *gin.Context) {
	username := c.Param("username")
	months := 0
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, http.StatusBadRequest, "months must be a non-negative integer")
			return
		}
		months = n
	}

	points, err := s.svc.TimeSeries(c.Request.Context(), username, months)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.fail(c, http.StatusNotFound, fmt.Sprintf("No time series data found for user %s", username))
			return
		}
		s.failErr(c, err)
		return
	}
	if points == nil {
		points = []model.TimeSeriesPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "time_series_data": points})
}

func (s *Server) handleLogin(c *gin.Context) {
	url, err := s.auth.LoginURL()
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"login_url": url})
}

func (s *Server) handleCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	token, err := s.auth.Callback(c.Request.Context(), req.Code, req.State)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.auth.Status(bearerToken(c)))
}

// failErr maps a service error onto a status code and detail message.
func (s *Server) failErr(c *gin.Context, err error) {
	var notCompleted *model.JobNotCompletedError
	switch {
	case errors.As(err, &notCompleted):
		s.fail(c, http.StatusNotFound, notCompleted.Error())
	case errors.Is(err, model.ErrNotFound):
		s.fail(c, http.StatusNotFound, "Job not found")
	case errors.Is(err, model.ErrEmptyUsername):
		s.fail(c, http.StatusBadRequest, "GitHub username is required")
	case errors.Is(err, auth.ErrInvalidState):
		s.fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotConfigured):
		s.fail(c, http.StatusNotImplemented, err.Error())
	case errors.Is(err, analysis.ErrQueueFull):
		s.fail(c, http.StatusServiceUnavailable, "Analysis queue is full, try again later")
	default:
		s.logger.Error("request failed",
			"request_id", requestIDFrom(c),
			"path", c.Request.URL.Path,
			"error", err,
		)
		s.fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
