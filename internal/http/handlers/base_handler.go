// README: Base handler utilities (JSON helpers, error mapping, id parsing).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vanbora/internal/types"
)

var errBadID = types.NewError(types.KindValidation, "invalid_id", "invalid id")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var kindStatus = map[types.Kind]int{
	types.KindValidation:  http.StatusBadRequest,
	types.KindNotFound:    http.StatusNotFound,
	types.KindForbidden:   http.StatusForbidden,
	types.KindConflict:    http.StatusConflict,
	types.KindRejected:    http.StatusUnprocessableEntity,
	types.KindIntegrity:   http.StatusInternalServerError,
	types.KindUnavailable: http.StatusServiceUnavailable,
	types.KindInternal:    http.StatusInternalServerError,
}

// StatusOf maps an error to the HTTP status a client should see.
func StatusOf(err error) int {
	if status, ok := kindStatus[types.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, err error) {
	var typed *types.Error
	if !errors.As(err, &typed) || typed.Kind == types.KindInternal || typed.Kind == types.KindIntegrity {
		// Internal details stay in the log.
		_ = c.Error(err)
		writeJSON(c, StatusOf(err), errorResponse{Error: "internal error", Code: types.CodeOf(err)})
		return
	}
	writeJSON(c, StatusOf(err), errorResponse{Error: typed.Message, Code: typed.Code})
}

func badRequest(c *gin.Context, msg string) {
	writeJSON(c, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	id, ok := types.ParseID(c.Param(name))
	if !ok {
		writeError(c, errBadID)
	}
	return id, ok
}
