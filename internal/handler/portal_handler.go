package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hirewise/examroom-backend/internal/middleware"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/repository"
	"github.com/hirewise/examroom-backend/internal/response"
	"github.com/hirewise/examroom-backend/internal/service"
	"github.com/hirewise/examroom-backend/internal/session"
	"github.com/hirewise/examroom-backend/internal/validator"
)

// PortalHandler handles candidate-facing endpoints: lobby, entering an exam,
// answering, navigation, and submission.
type PortalHandler struct {
	sessionService *service.SessionService
	authService    *service.AuthService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(sessionService *service.SessionService, authService *service.AuthService) *PortalHandler {
	return &PortalHandler{
		sessionService: sessionService,
		authService:    authService,
	}
}

// failRejection maps a session rejection to its HTTP status and error code.
func failRejection(c *gin.Context, rej *session.Rejection) {
	switch rej.Kind {
	case session.RejectNotAuthenticated:
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case session.RejectNotEligible:
		response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
	case session.RejectWindowNotOpen:
		response.Fail(c, http.StatusConflict, response.ErrWindowNotOpen)
	case session.RejectWindowClosed:
		response.Fail(c, http.StatusConflict, response.ErrWindowClosed)
	case session.RejectAlreadyCompleted:
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case session.RejectDefinitionFetchFailed:
		response.Fail(c, http.StatusBadGateway, response.ErrExamFetchFailed)
	case session.RejectSubmissionFailed:
		response.Fail(c, http.StatusBadGateway, response.ErrSubmissionFailed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failSessionError maps service-level session errors.
func failSessionError(c *gin.Context, err error) {
	var rej *session.Rejection
	switch {
	case errors.As(err, &rej):
		failRejection(c, rej)
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
	case errors.Is(err, service.ErrSessionInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSessionInProgress)
	case errors.Is(err, session.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// GetLobby godoc
// GET /api/v1/portal/lobby
// Returns the exams this candidate was granted, each with its phase.
func (h *PortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	lobby, err := h.sessionService.Lobby(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if lobby == nil {
		lobby = []service.LobbyEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// EnterExam godoc
// POST /api/v1/portal/exams/:exam_id/enter
// Runs the admission check and starts the countdown. Re-entering the same
// running exam returns the current state instead of a new admission.
func (h *PortalHandler) EnterExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	status, err := h.sessionService.Enter(c.Request.Context(), user, examID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetResult godoc
// GET /api/v1/portal/exams/:exam_id/result
// Returns the candidate's own completed submission for review.
func (h *PortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sub, err := h.sessionService.CompletedSubmission(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// GetState godoc
// GET /api/v1/portal/session
// Returns the current session view. Covers page reloads: remaining time,
// cursor position, and the current question with its saved answer.
func (h *PortalHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	status, err := h.sessionService.Status(claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// SubmitAnswer godoc
// PUT /api/v1/portal/session/answer
// Captures or replaces the answer for one question.
func (h *PortalHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	saved, err := h.sessionService.Answer(claims.UserID, req.QuestionID, req.Payload)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": saved})
}

// Navigate godoc
// POST /api/v1/portal/session/navigate
// Moves the cursor to the next or previous question, saturating at the ends.
func (h *PortalHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	dir := session.DirectionNext
	if req.Direction == "previous" {
		dir = session.DirectionPrevious
	}

	status, err := h.sessionService.Navigate(claims.UserID, dir)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// SubmitExam godoc
// POST /api/v1/portal/session/submit
// Finalizes the attempt: snapshot, queue, terminate.
func (h *PortalHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.SubmitSession(c.Request.Context(), claims.UserID); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
}

// LeaveExam godoc
// POST /api/v1/portal/session/leave
// Abandons the session without submitting.
func (h *PortalHandler) LeaveExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.Leave(claims.UserID); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "left"})
}
