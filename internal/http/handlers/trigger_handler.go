// Trigger HTTP handler.
//
// POST /internal/evaluate runs one trigger evaluation pass. It exists for
// external schedulers (cloud cron hitting the service over HTTP); the same
// pass also runs on the in-process schedule. The endpoint is idempotent at
// the alert level: overlapping invocations cannot double-send thanks to the
// conditional alert-marker commit.
package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Evaluate godoc
// @ID          evaluate
// @Summary     Run one trigger evaluation pass
// @Description Scans active switches, emails the recipients of due ones, and returns a run summary. Guarded by X-Trigger-Token when configured.
// @Tags        Trigger
// @Produce     json
//
// @Param       X-Trigger-Token  header  string  false "Shared scheduler token"
//
// @Success     200  {object} services.Summary
// @Failure     401  {object} handlers.ErrorResponse "Bad or missing trigger token"
// @Failure     500  {object} services.Summary "Fatal precondition failure (ok=false)"
// @Router      /internal/evaluate [post]
func (h *Handlers) Evaluate(c *gin.Context) {
	if h.TriggerToken != "" {
		got := strings.TrimSpace(c.GetHeader("X-Trigger-Token"))
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.TriggerToken)) != 1 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid trigger token")
			return
		}
	}

	sum, err := h.trigSvc.Run(c.Request.Context())
	if err != nil {
		// Fatal preconditions (no transport, store unreachable) fail the whole
		// run; the summary still carries whatever was counted.
		c.JSON(http.StatusInternalServerError, sum)
		return
	}
	ok(c, http.StatusOK, sum)
}
