// Switch HTTP handlers.
//
// This file exposes REST endpoints for switch resources:
//   - POST   /switches              (create)
//   - GET    /switches              (list, paginated)
//   - GET    /switches/{id}         (fetch)
//   - PUT    /switches/{id}         (reconfigure)
//   - DELETE /switches/{id}         (delete)
//   - PUT    /switches/{id}/status  (pause / resume / complete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/afoster/go-switch-backend/internal/domain"
	"github.com/afoster/go-switch-backend/internal/services"
	"github.com/afoster/go-switch-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SwitchService defines switch lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SwitchService interface {
	// Create registers a new active switch for userID.
	Create(ctx context.Context, userID, name string, intervalDays, graceDays int, timezone string) (*domain.Switch, error)
	// Get returns one switch owned by userID.
	Get(ctx context.Context, userID, id string) (*domain.Switch, error)
	// ListPage returns a page of the user's switches and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Switch, int64, error)
	// Update rewrites the mutable configuration of a switch.
	Update(ctx context.Context, userID, id, name string, intervalDays, graceDays int, timezone string) (*domain.Switch, error)
	// Delete removes a switch with its message and attachments.
	Delete(ctx context.Context, userID, id string) error
	// SetStatus moves a switch through the status state machine.
	SetStatus(ctx context.Context, userID, id, status string) (*domain.Switch, error)
}

// CheckinService defines the check-in recorder consumed by HTTP handlers.
type CheckinService interface {
	// Checkin advances the baseline of the user's active switches.
	Checkin(ctx context.Context, userID, sessionKey string) (touched int64, repeated bool, err error)
}

// MessageService defines operations on the message attached to a switch.
type MessageService interface {
	SetMessage(ctx context.Context, userID, switchID, subject, body string) (*domain.Message, error)
	GetMessage(ctx context.Context, userID, switchID string) (*domain.Message, error)
	ClearMessage(ctx context.Context, userID, switchID string) error
}

// AttachmentService defines switch↔recipient attachment operations.
type AttachmentService interface {
	AttachRecipient(ctx context.Context, userID, switchID, recipientID string) error
	DetachRecipient(ctx context.Context, userID, switchID, recipientID string) error
	Recipients(ctx context.Context, userID, switchID string) ([]domain.Recipient, error)
}

// RecipientService defines recipient address-book operations.
type RecipientService interface {
	Create(ctx context.Context, userID, name, email string) (*domain.Recipient, error)
	List(ctx context.Context, userID string) ([]domain.Recipient, error)
	Delete(ctx context.Context, userID, id string) error
}

// TriggerService runs one trigger evaluation pass.
type TriggerService interface {
	Run(ctx context.Context) (*services.Summary, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for switches, recipients, check-ins, and the
// trigger entrypoint. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	swSvc      SwitchService
	checkinSvc CheckinService
	msgSvc     MessageService
	attachSvc  AttachmentService
	recSvc     RecipientService
	trigSvc    TriggerService

	// TriggerToken, when non-empty, must match the X-Trigger-Token header on
	// the evaluate endpoint.
	TriggerToken string
}

// New constructs and returns a Handlers instance bound to the given services.
func New(swSvc SwitchService, checkinSvc CheckinService, msgSvc MessageService, attachSvc AttachmentService, recSvc RecipientService, trigSvc TriggerService) *Handlers {
	return &Handlers{
		swSvc:      swSvc,
		checkinSvc: checkinSvc,
		msgSvc:     msgSvc,
		attachSvc:  attachSvc,
		recSvc:     recSvc,
		trigSvc:    trigSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// SwitchRequest is the JSON payload for creating or reconfiguring a switch.
type SwitchRequest struct {
	// Name optionally labels the switch; a default is used when empty.
	Name string `json:"name" example:"Vault handover"`
	// IntervalDays is the check-in period in days.
	IntervalDays int `json:"interval_days" binding:"required" example:"30"`
	// GraceDays is the extra buffer added to the interval (may be 0).
	GraceDays int `json:"grace_days" example:"2"`
	// Timezone is an IANA zone name used for display only.
	Timezone string `json:"timezone" example:"Europe/Athens"`
}

// UpdateStatusRequest is the JSON payload for the status endpoint.
type UpdateStatusRequest struct {
	// Status is one of active, paused, completed.
	Status string `json:"status" binding:"required" example:"paused"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSwitchesResponse wraps a page of switches and pagination information.
type ListSwitchesResponse struct {
	Switches   []domain.Switch `json:"switches"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// requireUUID validates a path parameter as a UUID, writing a 400 on failure.
func requireUUID(c *gin.Context, param, what string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// failService maps service-level sentinel errors onto the HTTP error taxonomy.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSwitchNotFound),
		errors.Is(err, services.ErrRecipientNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrNotAttached):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidInterval),
		errors.Is(err, services.ErrInvalidGrace),
		errors.Is(err, services.ErrInvalidTimezone),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrSwitchCompleted),
		errors.Is(err, services.ErrAlreadyAttached),
		errors.Is(err, services.ErrDuplicateRecipient):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateSwitch godoc
// @ID          createSwitch
// @Summary     Create a new switch
// @Description Registers an active switch for the current user; the creation instant is the first baseline.
// @Tags        Switches
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SwitchRequest  true  "Switch configuration"
//
// @Success     201  {object}  domain.Switch
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /switches [post]
func (h *Handlers) CreateSwitch(c *gin.Context) {
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sw, err := h.swSvc.Create(c.Request.Context(), userID(c), req.Name, req.IntervalDays, req.GraceDays, req.Timezone)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, sw)
}

// ListSwitches godoc
// @ID          listSwitches
// @Summary     List switches (paginated)
// @Description Returns a page of the user's switches, newest first.
// @Tags        Switches
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSwitchesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /switches [get]
func (h *Handlers) ListSwitches(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.swSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSwitchesResponse{
		Switches: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetSwitch godoc
// @ID          getSwitch
// @Summary     Fetch a switch
// @Tags        Switches
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.Switch
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id} [get]
func (h *Handlers) GetSwitch(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	sw, err := h.swSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sw)
}

// UpdateSwitch godoc
// @ID          updateSwitch
// @Summary     Reconfigure a switch
// @Description Rewrites name, interval, grace, and timezone. Status and check-in bookkeeping are untouched.
// @Tags        Switches
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
// @Param       body       body    handlers.SwitchRequest  true  "New configuration"
//
// @Success     200  {object} domain.Switch
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id} [put]
func (h *Handlers) UpdateSwitch(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sw, err := h.swSvc.Update(c.Request.Context(), userID(c), id, req.Name, req.IntervalDays, req.GraceDays, req.Timezone)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sw)
}

// DeleteSwitch godoc
// @ID          deleteSwitch
// @Summary     Delete a switch
// @Description Removes the switch together with its message and recipient attachments.
// @Tags        Switches
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id} [delete]
func (h *Handlers) DeleteSwitch(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	if err := h.swSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// UpdateSwitchStatus godoc
// @ID          updateSwitchStatus
// @Summary     Pause, resume, or complete a switch
// @Description Moves the switch through the status state machine. Resuming resets the baseline; completed is terminal.
// @Tags        Switches
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
// @Param       body       body    handlers.UpdateStatusRequest  true  "Target status"
//
// @Success     200  {object} domain.Switch
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Failure     409  {object} handlers.ErrorResponse "Switch is completed"
// @Router      /switches/{id}/status [put]
func (h *Handlers) UpdateSwitchStatus(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	sw, err := h.swSvc.SetStatus(c.Request.Context(), userID(c), id, req.Status)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, sw)
}
