// Check-in HTTP handler.
//
// POST /checkin advances the baseline of every active switch owned by the
// current user ("I'm still here"). Clients that auto-check-in on login send a
// session key so repeated loads within one session collapse into a single
// recorded check-in.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckinRequest is the optional JSON payload for a check-in.
type CheckinRequest struct {
	// SessionKey, when set, dedupes repeat check-ins within the same client
	// session; the first result is replayed.
	SessionKey string `json:"session_key" example:"login-9b2f"`
}

// CheckinResponse reports the outcome of a check-in.
type CheckinResponse struct {
	// Touched is the number of active switches whose baseline advanced.
	Touched int64 `json:"touched"`
	// Repeated is true when the session key matched an earlier check-in and
	// the stored result was replayed.
	Repeated bool `json:"repeated"`
}

// Checkin godoc
// @ID          checkin
// @Summary     Record a check-in
// @Description Sets the check-in baseline to now for all of the user's active switches. Paused and completed switches are untouched.
// @Tags        Check-in
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CheckinRequest  false  "Optional session key"
//
// @Success     200  {object} handlers.CheckinResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /checkin [post]
func (h *Handlers) Checkin(c *gin.Context) {
	var req CheckinRequest
	// The body is optional; an empty or absent body is a plain check-in.
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	touched, repeated, err := h.checkinSvc.Checkin(c.Request.Context(), userID(c), req.SessionKey)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCheckinFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, CheckinResponse{Touched: touched, Repeated: repeated})
}
