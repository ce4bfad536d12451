// Package health is for the health route
package health

import (
	"context"
	"net/http"

	"vcfcreds/version"

	"github.com/labstack/echo/v4"
)

type (
	// Pinger reports whether a backing store is reachable.
	Pinger func(ctx context.Context) error

	Handler struct {
		ping Pinger
	}

	OkResponse struct {
		Ok       bool   `json:"ok"`
		Version  string `json:"version"`
		Database string `json:"database"`
	}
)

func NewHandler(ping Pinger) *Handler {
	return &Handler{ping: ping}
}

func (h Handler) GET(c echo.Context) error {
	res := OkResponse{
		Ok:       true,
		Version:  version.Version,
		Database: "ok",
	}
	if h.ping != nil {
		if err := h.ping(c.Request().Context()); err != nil {
			res.Ok = false
			res.Database = err.Error()
			return c.JSON(http.StatusServiceUnavailable, res)
		}
	}
	return c.JSON(http.StatusOK, res)
}

func Register(g *echo.Group, ping Pinger) {
	h := NewHandler(ping)

	g.GET("/health", h.GET)
}
