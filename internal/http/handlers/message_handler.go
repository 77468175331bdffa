// Message HTTP handlers.
//
// A switch carries at most one message: the pre-written content delivered to
// recipients when the switch triggers. These endpoints manage that 1:1
// attachment:
//   - PUT    /switches/{id}/message  (create or replace)
//   - GET    /switches/{id}/message  (fetch)
//   - DELETE /switches/{id}/message  (clear)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetMessageRequest is the JSON payload for attaching a message to a switch.
type SetMessageRequest struct {
	// Subject may contain personalization tokens; blank falls back to the
	// default subject at send time.
	Subject string `json:"subject" example:"A note from {recipient_first_name}'s friend"`
	// Body is the message content; supports {recipient_name} and
	// {recipient_first_name} tokens.
	Body string `json:"body" binding:"required" example:"Hello {recipient_first_name}, ..."`
}

// SetMessage godoc
// @ID          setMessage
// @Summary     Attach or replace the switch message
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
// @Param       body       body    handlers.SetMessageRequest  true  "Message content"
//
// @Success     200  {object} domain.Message
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id}/message [put]
func (h *Handlers) SetMessage(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	var req SetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.msgSvc.SetMessage(c.Request.Context(), userID(c), id, req.Subject, req.Body)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Fetch the switch message
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.Message
// @Failure     404  {object} handlers.ErrorResponse "Switch or message not found"
// @Router      /switches/{id}/message [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	m, err := h.msgSvc.GetMessage(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Clear the switch message
// @Description Removing the message stops future triggers from sending anything; clearing twice is not an error.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id}/message [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	if err := h.msgSvc.ClearMessage(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
