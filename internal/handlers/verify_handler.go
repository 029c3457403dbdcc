package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

// VerifyHandler exposes the code issuer to authenticated users. Sending and checking
// are limited to kinds without a dedicated flow, and codes only go to the address on file.
type VerifyHandler struct {
	codes services.VerificationService
	users services.UserLookup
}

func NewVerifyHandler(codes services.VerificationService, users services.UserLookup) *VerifyHandler {
	return &VerifyHandler{codes: codes, users: users}
}

// defaultTarget picks the address on file for the method when the request names none.
func (h *VerifyHandler) defaultTarget(c *gin.Context, userID int64, method models.DeliveryMethod, target string) (string, string, bool) {
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return "", "", false
	}
	if user == nil {
		respondError(c, services.ErrNotFound)
		return "", "", false
	}
	if target = strings.TrimSpace(target); target == "" {
		switch method {
		case models.MethodEmail:
			target = user.Email
		case models.MethodSMS:
			target = user.Phone
		}
	}
	return target, user.DisplayName(), true
}

// standaloneKind reports whether kind has no confirm endpoint of its own.
// Reset, deletion, phone and sign-in codes are only issued by their own flows.
func standaloneKind(kind models.VerificationKind) bool {
	return kind == models.KindSensitiveAction
}

// @Summary      Send a verification code to the address on file
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  services.IssueResult
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]interface{}
// @Failure      502  {object}  services.IssueResult
// @Router       /verification/send [post]
func (h *VerifyHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Kind   models.VerificationKind `json:"kind" binding:"required"`
		Method models.DeliveryMethod   `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !standaloneKind(req.Kind) {
		respondError(c, services.ErrInvalidKind)
		return
	}
	target, name, ok := h.defaultTarget(c, userID, req.Method, "")
	if !ok {
		return
	}
	res, err := h.codes.IssueAndSend(c.Request.Context(), services.IssueRequest{
		UserID: userID,
		Kind:   req.Kind,
		Method: req.Method,
		Target: target,
		Name:   name,
	})
	respondIssue(c, res, err)
}

// @Summary      Check a verification code
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /verification/verify [post]
func (h *VerifyHandler) Verify(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Kind models.VerificationKind `json:"kind" binding:"required"`
		Code string                  `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !standaloneKind(req.Kind) {
		respondError(c, services.ErrInvalidKind)
		return
	}
	if err := h.codes.Verify(c.Request.Context(), userID, req.Kind, strings.TrimSpace(req.Code)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// @Summary      Whether a new code may be requested now
// @Tags         Verification
// @Produce      json
// @Security     BearerAuth
// @Param        kind    query  string  true   "Verification kind"
// @Param        method  query  string  true   "EMAIL or SMS"
// @Param        target  query  string  false  "Destination, defaults to the address on file"
// @Success      200  {object}  services.RequestWindow
// @Router       /verification/status [get]
func (h *VerifyHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	kind := models.VerificationKind(c.Query("kind"))
	method := models.DeliveryMethod(c.Query("method"))
	if !kind.Valid() {
		respondError(c, services.ErrInvalidKind)
		return
	}
	if !method.Valid() {
		respondError(c, services.ErrInvalidMethod)
		return
	}
	target, _, ok := h.defaultTarget(c, userID, method, c.Query("target"))
	if !ok {
		return
	}
	win, err := h.codes.CanRequestCode(c.Request.Context(), userID, kind, method, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, win)
}
