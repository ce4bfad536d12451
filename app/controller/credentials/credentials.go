// Package credentials serves the password history of stored credentials.
package credentials

import (
	"errors"
	"net/http"

	"vcfcreds/domain/credential"

	"github.com/labstack/echo/v4"
)

type (
	Handler struct {
		creds credential.Repository
	}

	HistoryResponse struct {
		Credential credential.Credential        `json:"credential"`
		History    []credential.PasswordHistory `json:"history"`
	}
)

func NewHandler(creds credential.Repository) *Handler {
	return &Handler{creds: creds}
}

// History returns the credential with its superseded passwords, newest first.
func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()

	cred, err := h.creds.FindByID(ctx, c.Param("id"))
	if errors.Is(err, credential.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Credential not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to fetch credential: " + err.Error(),
		})
	}

	history, err := h.creds.History(ctx, cred.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to fetch history: " + err.Error(),
		})
	}
	if history == nil {
		history = []credential.PasswordHistory{}
	}

	return c.JSON(http.StatusOK, HistoryResponse{Credential: *cred, History: history})
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/history", h.History)
}
