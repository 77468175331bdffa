// Recipient HTTP handlers.
//
// Recipients form a per-user address book; attaching one to a switch makes it
// a delivery target when that switch triggers.
//   - POST   /recipients                          (create)
//   - GET    /recipients                          (list)
//   - DELETE /recipients/{id}                     (delete, detaches everywhere)
//   - GET    /switches/{id}/recipients            (list attached)
//   - POST   /switches/{id}/recipients/{rid}      (attach)
//   - DELETE /switches/{id}/recipients/{rid}      (detach)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateRecipientRequest is the JSON payload for registering a recipient.
type CreateRecipientRequest struct {
	// Name is the display name used for personalization tokens.
	Name string `json:"name" example:"Ada Lovelace"`
	// Email is the delivery address; unique per owner modulo case folding.
	Email string `json:"email" binding:"required" example:"ada@example.com"`
}

// CreateRecipient godoc
// @ID          createRecipient
// @Summary     Register a recipient
// @Tags        Recipients
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateRecipientRequest  true  "Recipient"
//
// @Success     201  {object} domain.Recipient
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /recipients [post]
func (h *Handlers) CreateRecipient(c *gin.Context) {
	var req CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.recSvc.Create(c.Request.Context(), userID(c), req.Name, req.Email)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListRecipients godoc
// @ID          listRecipients
// @Summary     List the user's recipients
// @Tags        Recipients
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}  domain.Recipient
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipients [get]
func (h *Handlers) ListRecipients(c *gin.Context) {
	list, err := h.recSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, list)
}

// DeleteRecipient godoc
// @ID          deleteRecipient
// @Summary     Delete a recipient
// @Description Removes the recipient from the address book and detaches it from every switch.
// @Tags        Recipients
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Recipient ID (UUID)"    format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Recipient not found"
// @Router      /recipients/{id} [delete]
func (h *Handlers) DeleteRecipient(c *gin.Context) {
	id, valid := requireUUID(c, "id", "recipient")
	if !valid {
		return
	}
	if err := h.recSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ListSwitchRecipients godoc
// @ID          listSwitchRecipients
// @Summary     List recipients attached to a switch
// @Tags        Recipients
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
//
// @Success     200  {array}  domain.Recipient
// @Failure     404  {object} handlers.ErrorResponse "Switch not found"
// @Router      /switches/{id}/recipients [get]
func (h *Handlers) ListSwitchRecipients(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	list, err := h.attachSvc.Recipients(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// AttachRecipient godoc
// @ID          attachRecipient
// @Summary     Attach a recipient to a switch
// @Tags        Recipients
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
// @Param       rid        path    string  true  "Recipient ID (UUID)"    format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Switch or recipient not found"
// @Failure     409  {object} handlers.ErrorResponse "Already attached"
// @Router      /switches/{id}/recipients/{rid} [post]
func (h *Handlers) AttachRecipient(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	rid, valid := requireUUID(c, "rid", "recipient")
	if !valid {
		return
	}
	if err := h.attachSvc.AttachRecipient(c.Request.Context(), userID(c), id, rid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// DetachRecipient godoc
// @ID          detachRecipient
// @Summary     Detach a recipient from a switch
// @Tags        Recipients
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Switch ID (UUID)"       format(uuid)
// @Param       rid        path    string  true  "Recipient ID (UUID)"    format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not attached"
// @Router      /switches/{id}/recipients/{rid} [delete]
func (h *Handlers) DetachRecipient(c *gin.Context) {
	id, valid := requireUUID(c, "id", "switch")
	if !valid {
		return
	}
	rid, valid := requireUUID(c, "rid", "recipient")
	if !valid {
		return
	}
	if err := h.attachSvc.DetachRecipient(c.Request.Context(), userID(c), id, rid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
