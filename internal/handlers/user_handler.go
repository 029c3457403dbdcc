package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/services"
)

// UserHandler serves the authenticated /me routes.
type UserHandler struct {
	auth services.AuthService
}

func NewUserHandler(auth services.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary      Current user
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Router       /me [get]
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ResendEmailVerification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.auth.ResendEmailVerification(c.Request.Context(), userID)
	respondIssue(c, res, err)
}

// @Summary      Enable or disable two-factor sign in
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Router       /me/two-factor [post]
func (h *UserHandler) SetTwoFactor(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.SetTwoFactor(c.Request.Context(), userID, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"two_factor_enabled": *req.Enabled})
}

// @Summary      Send a phone verification code by SMS
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  services.IssueResult
// @Failure      429  {object}  map[string]interface{}
// @Router       /me/phone [post]
func (h *UserHandler) RequestPhoneVerification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.auth.RequestPhoneVerification(c.Request.Context(), userID, strings.TrimSpace(req.Phone))
	respondIssue(c, res, err)
}

func (h *UserHandler) ConfirmPhone(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.ConfirmPhone(c.Request.Context(), userID, strings.TrimSpace(req.Code)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Phone verified"})
}

func (h *UserHandler) RequestDeletion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.auth.RequestAccountDeletion(c.Request.Context(), userID)
	respondIssue(c, res, err)
}

// @Summary      Delete the account with an emailed code
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /me/delete/confirm [post]
func (h *UserHandler) ConfirmDeletion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.ConfirmAccountDeletion(c.Request.Context(), userID, strings.TrimSpace(req.Code)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
