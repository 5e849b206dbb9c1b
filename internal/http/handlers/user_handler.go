// README: Profile handlers; the profile id is always the caller's token uid.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vanbora/internal/http/middleware"
	"vanbora/internal/modules/user"
	"vanbora/internal/types"
)

var errDriverClaim = types.NewError(types.KindForbidden, "driver_claim_required", "driver profiles require a driver account")

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsDriver bool   `json:"is_driver"`
	PixKey   string `json:"pix_key"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.IsDriver && !middleware.CallerIsDriver(c) {
		writeError(c, errDriverClaim)
		return
	}
	email := req.Email
	if email == "" {
		email = middleware.CallerEmail(c)
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterCommand{
		UserID:   types.ID(middleware.CallerUID(c)),
		Username: req.Username,
		Email:    email,
		IsDriver: req.IsDriver,
		PixKey:   req.PixKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newUserView(u))
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newUserView(u))
}
