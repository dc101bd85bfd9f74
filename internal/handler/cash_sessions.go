package handler

import (
	"net/http"
	"strconv"

	"estancopro/internal/dto"
	"estancopro/internal/middleware"
	"estancopro/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CashSessionHandler struct{ svc service.CashSessionService }

func NewCashSessionHandler(svc service.CashSessionService) *CashSessionHandler {
	return &CashSessionHandler{svc: svc}
}

// Open godoc
// @Summary Open a new cash session
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening data"
// @Success 201 {object} dto.CashSessionResponse
// @Failure 400 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/cash-sessions/open [post]
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Open(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOpen returns the currently open cash session, 204 when there is none.
func (h *CashSessionHandler) GetOpen(c *gin.Context) {
	resp, err := h.svc.GetOpen(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Count the drawer and close the session
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CloseSessionRequest true "Counted closing amount"
// @Success 200 {object} dto.CloseSessionResponse
// @Failure 404 {object} apierror.Error
// @Router /v1/cash-sessions/{id}/close [post]
func (h *CashSessionHandler) Close(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Balance godoc
// @Summary Current drawer balance and movement list for a session
// @Tags cash-sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.CashSessionBalanceResponse
// @Failure 404 {object} apierror.Error
// @Router /v1/cash-sessions/{id}/balance [get]
func (h *CashSessionHandler) Balance(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Balance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordMovement godoc
// @Summary Record a manual cash movement (expense, adjustment, refund)
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.RecordMovementRequest true "Movement"
// @Success 201 {object} dto.MovementResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/cash-sessions/{id}/movements [post]
func (h *CashSessionHandler) RecordMovement(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.RecordMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// History returns a paginated list of sessions, newest first.
func (h *CashSessionHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	resp, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
