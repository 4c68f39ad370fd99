package handler

const (
	errInternalServer        = "Internal server error"
	errSurveyNotFound        = "Survey not found"
	errSurveyNotQueued       = "Survey is no longer queued"
	errDuplicateSurvey       = "Survey with this idempotency key already exists"
	errInvalidStatus         = "Unknown status filter"
	errInvalidCursor         = "Invalid pagination cursor"
	errInvalidCronExpr       = "Invalid cron expression"
	errScheduleNotFound      = "Schedule not found"
	errScheduleAlreadyPaused = "Schedule is already paused"
	errScheduleNotPaused     = "Schedule is not paused"
	errScheduleNameConflict  = "Schedule with this name already exists"
)
