package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/dfalcao/precario/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Name        string `json:"name"         binding:"required,max=256"`
	Query       string `json:"query"        binding:"required,max=512"`
	TargetCount int    `json:"target_count" binding:"omitempty,min=1,max=20"`
	CronExpr    string `json:"cron_expr"    binding:"required"`
}

type scheduleResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Query       string     `json:"query"`
	TargetCount int        `json:"target_count"`
	CronExpr    string     `json:"cron_expr"`
	Paused      bool       `json:"paused"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toScheduleResponse(s *domain.SurveySchedule) scheduleResponse {
	return scheduleResponse{
		ID:          s.ID,
		Name:        s.Name,
		Query:       s.Query,
		TargetCount: s.TargetCount,
		CronExpr:    s.CronExpr,
		Paused:      s.Paused,
		NextRunAt:   s.NextRunAt,
		LastRunAt:   s.LastRunAt,
		CreatedAt:   s.CreatedAt,
	}
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.CreateSchedule(ctx.Request.Context(), usecase.CreateScheduleInput{
		Name:        req.Name,
		Query:       req.Query,
		TargetCount: req.TargetCount,
		CronExpr:    req.CronExpr,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCronExpr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
		case errors.Is(err, domain.ErrScheduleNameConflict):
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNameConflict})
		default:
			h.logger.Error("create schedule", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	h.logger.Info("schedule created", "schedule_id", s.ID, "operator_id", ctx.GetString("operatorID"))
	ctx.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListSchedules(ctx.Request.Context(), usecase.ListSchedulesInput{
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
			return
		}
		h.logger.Error("list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]scheduleResponse, len(result.Schedules))
	for i, s := range result.Schedules {
		items[i] = toScheduleResponse(s)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"schedules":   items,
		"next_cursor": result.NextCursor,
	})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	s, err := h.uc.GetSchedule(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Pause(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.PauseSchedule(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScheduleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
		case errors.Is(err, domain.ErrScheduleAlreadyPaused):
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleAlreadyPaused})
		default:
			h.logger.Error("pause schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Resume(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.ResumeSchedule(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScheduleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
		case errors.Is(err, domain.ErrScheduleNotPaused):
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNotPaused})
		default:
			h.logger.Error("resume schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.DeleteSchedule(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("delete schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}
