package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type tokenIssuer interface {
	IssueToken(req models.IssueTokenRequest) (*models.IssuedToken, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// IssueToken godoc
// @Summary Mint an access token
// @Description Admins mint tokens for teachers, learners and viewers.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.IssueTokenRequest true "Token request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/tokens [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req models.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token payload"))
		return
	}

	token, err := h.service.IssueToken(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, token)
}

// Me godoc
// @Summary Current caller
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"subject": claims.Subject, "role": claims.Role, "name": claims.Name})
}
