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
	"github.com/shopspring/decimal"
)

type SurveyHandler struct {
	uc     *usecase.SurveyUsecase
	logger *slog.Logger
}

func NewSurveyHandler(uc *usecase.SurveyUsecase, logger *slog.Logger) *SurveyHandler {
	return &SurveyHandler{uc: uc, logger: logger.With("component", "survey_handler")}
}

type createSurveyRequest struct {
	IdempotencyKey string    `json:"idempotency_key" binding:"required,max=256"`
	Query          string    `json:"query"           binding:"required,max=512"`
	TargetCount    int       `json:"target_count"    binding:"omitempty,min=1,max=20"`
	ScheduledAt    time.Time `json:"scheduled_at"    binding:"omitempty"`
	MaxRetries     int       `json:"max_retries"     binding:"omitempty,min=0,max=20"`
}

type surveyResponse struct {
	ID           string              `json:"id"`
	Query        string              `json:"query"`
	TargetCount  int                 `json:"target_count"`
	Status       domain.SurveyStatus `json:"status"`
	ScheduledAt  time.Time           `json:"scheduled_at"`
	MeanPrice    *decimal.Decimal    `json:"mean_price,omitempty"`
	MinPrice     *decimal.Decimal    `json:"min_price,omitempty"`
	MaxPrice     *decimal.Decimal    `json:"max_price,omitempty"`
	VariationPct *decimal.Decimal    `json:"variation_pct,omitempty"`
	Diagnostics  *domain.Diagnostics `json:"diagnostics,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	LastError    *string             `json:"last_error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func toSurveyResponse(s *domain.Survey) surveyResponse {
	return surveyResponse{
		ID:           s.ID,
		Query:        s.Query,
		TargetCount:  s.TargetCount,
		Status:       s.Status,
		ScheduledAt:  s.ScheduledAt,
		MeanPrice:    s.MeanPrice,
		MinPrice:     s.MinPrice,
		MaxPrice:     s.MaxPrice,
		VariationPct: s.VariationPct,
		Diagnostics:  s.Diagnostics,
		CompletedAt:  s.CompletedAt,
		LastError:    s.LastError,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (h *SurveyHandler) Create(ctx *gin.Context) {
	var req createSurveyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	survey, err := h.uc.CreateSurvey(ctx.Request.Context(), usecase.CreateSurveyInput{
		IdempotencyKey: req.IdempotencyKey,
		Query:          req.Query,
		TargetCount:    req.TargetCount,
		ScheduledAt:    req.ScheduledAt,
		MaxRetries:     req.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSurvey) {
			ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateSurvey})
			return
		}
		h.logger.Error("create survey", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.logger.Info("survey created", "survey_id", survey.ID, "operator_id", ctx.GetString("operatorID"))
	ctx.JSON(http.StatusCreated, toSurveyResponse(survey))
}

func (h *SurveyHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	survey, err := h.uc.GetSurvey(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errSurveyNotFound})
			return
		}
		h.logger.Error("get survey", "survey_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toSurveyResponse(survey))
}

func (h *SurveyHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListSurveys(ctx.Request.Context(), usecase.ListSurveysInput{
		Status: ctx.Query("status"),
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStatus})
		case errors.Is(err, domain.ErrInvalidCursor):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
		default:
			h.logger.Error("list surveys", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	items := make([]surveyResponse, len(result.Surveys))
	for i, s := range result.Surveys {
		items[i] = toSurveyResponse(s)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"surveys":     items,
		"next_cursor": result.NextCursor,
	})
}

func (h *SurveyHandler) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.CancelSurvey(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSurveyNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errSurveyNotFound})
		case errors.Is(err, domain.ErrSurveyNotQueued):
			ctx.JSON(http.StatusConflict, gin.H{"error": errSurveyNotQueued})
		default:
			h.logger.Error("cancel survey", "survey_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	h.logger.Info("survey cancelled", "survey_id", id, "operator_id", ctx.GetString("operatorID"))
	ctx.Status(http.StatusNoContent)
}

type candidateItem struct {
	Position    int                `json:"position"`
	Title       string             `json:"title"`
	Source      string             `json:"source"`
	ListPrice   decimal.Decimal    `json:"list_price"`
	StoreURL    *string            `json:"store_url,omitempty"`
	StoreDomain *string            `json:"store_domain,omitempty"`
	SitePrice   *decimal.Decimal   `json:"site_price,omitempty"`
	Status      string             `json:"status"`
	FailReason  *domain.FailReason `json:"fail_reason,omitempty"`
}

type sourceItem struct {
	Title        string          `json:"title"`
	Domain       string          `json:"domain"`
	URL          string          `json:"url"`
	SettledPrice decimal.Decimal `json:"settled_price"`
	Evidence     string          `json:"evidence,omitempty"`
}

// Audit exposes the full candidate arena and the accepted sources so a reviewer
// can see why every offer was accepted or excluded.
func (h *SurveyHandler) Audit(ctx *gin.Context) {
	id := ctx.Param("id")

	candidates, sources, err := h.uc.GetSurveyAudit(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errSurveyNotFound})
			return
		}
		h.logger.Error("survey audit", "survey_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	candidateItems := make([]candidateItem, len(candidates))
	for i, c := range candidates {
		candidateItems[i] = candidateItem{
			Position:    c.Position,
			Title:       c.Title,
			Source:      c.Source,
			ListPrice:   c.ListPrice,
			StoreURL:    c.StoreURL,
			StoreDomain: c.StoreDomain,
			SitePrice:   c.SitePrice,
			Status:      string(c.Status),
			FailReason:  c.FailReason,
		}
	}
	sourceItems := make([]sourceItem, len(sources))
	for i, s := range sources {
		sourceItems[i] = sourceItem{
			Title:        s.Title,
			Domain:       s.Domain,
			URL:          s.URL,
			SettledPrice: s.SettledPrice,
			Evidence:     s.Evidence,
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"candidates": candidateItems,
		"sources":    sourceItems,
	})
}
