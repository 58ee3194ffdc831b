package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

type mediaTokenParser interface {
	Parse(token string) (storage.MediaGrant, error)
}

// MediaHandler redeems signed media links.
type MediaHandler struct {
	signer mediaTokenParser
}

// NewMediaHandler constructs MediaHandler.
func NewMediaHandler(signer mediaTokenParser) *MediaHandler {
	return &MediaHandler{signer: signer}
}

// Redirect godoc
// @Summary Redeem media link
// @Description Verifies the signed token and redirects to the section media
// @Tags Media
// @Param token path string true "Signed media token"
// @Success 302 {string} string "Redirect to the media reference"
// @Failure 401 {object} response.Envelope
// @Router /media/{token} [get]
func (h *MediaHandler) Redirect(c *gin.Context) {
	grant, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		message := "invalid media link"
		if errors.Is(err, storage.ErrTokenExpired) {
			message = "media link expired"
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrTokenInvalid.Code, appErrors.ErrTokenInvalid.Status, message))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, grant.MediaRef)
}
