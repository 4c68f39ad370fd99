package httptransport

import (
	"log/slog"

	"github.com/dfalcao/precario/internal/transport/http/handler"
	"github.com/dfalcao/precario/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, surveyHandler *handler.SurveyHandler, scheduleHandler *handler.ScheduleHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwtKey)

	surveys := r.Group("/surveys", authMW)
	surveys.POST("", surveyHandler.Create)
	surveys.GET("", surveyHandler.List)
	surveys.GET("/:id", surveyHandler.GetByID)
	surveys.GET("/:id/audit", surveyHandler.Audit)
	surveys.DELETE("/:id", surveyHandler.Cancel)

	schedules := r.Group("/schedules", authMW)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)
	schedules.DELETE("/:id", scheduleHandler.Delete)

	return r
}
