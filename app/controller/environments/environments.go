// Package environments handles environment management and the per-environment
// sync, credential listing and export endpoints.
package environments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"vcfcreds/app/services/credsync"
	"vcfcreds/domain/credential"
	"vcfcreds/domain/environment"
	"vcfcreds/internal/export"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Syncer is the part of credsync.Service the handler drives.
type Syncer interface {
	SyncEnvironment(ctx context.Context, env environment.Environment) (credsync.Outcome, error)
	TestConnection(ctx context.Context, cfg credsync.DeploymentConfig) map[credential.Provenance]credsync.ConnectionResult
}

// Scheduler keeps cron entries in step with environment edits.
type Scheduler interface {
	Schedule(env environment.Environment)
	Unschedule(envID string)
}

type (
	Handler struct {
		envs      environment.Repository
		creds     credential.Repository
		syncer    Syncer
		scheduler Scheduler
		now       func() time.Time
	}

	// EnvironmentRequest is the body of create and update. Empty passwords
	// on update keep the stored ones.
	EnvironmentRequest struct {
		Name                string `json:"name" validate:"required,max=100"`
		Description         string `json:"description"`
		InstallerHost       string `json:"installer_host" validate:"max=255"`
		InstallerUsername   string `json:"installer_username" validate:"required_with=InstallerHost"`
		InstallerPassword   string `json:"installer_password"`
		InstallerVerifyTLS  bool   `json:"installer_ssl_verify"`
		ManagerHost         string `json:"manager_host" validate:"max=255"`
		ManagerUsername     string `json:"manager_username" validate:"required_with=ManagerHost"`
		ManagerPassword     string `json:"manager_password"`
		ManagerVerifyTLS    bool   `json:"manager_ssl_verify"`
		SyncEnabled         bool   `json:"sync_enabled"`
		SyncIntervalMinutes int    `json:"sync_interval_minutes" validate:"omitempty,min=1,max=10080"`
	}

	// TestConnectionRequest tests stored settings when EnvironmentID is set;
	// any non-empty field overrides the stored value.
	TestConnectionRequest struct {
		EnvironmentID string `json:"environment_id"`
		EnvironmentRequest
	}

	TestConnectionResponse struct {
		Success bool                                                `json:"success"`
		Results map[credential.Provenance]credsync.ConnectionResult `json:"results"`
	}

	SyncResponse struct {
		SyncID   string                  `json:"sync_id"`
		Success  bool                    `json:"success"`
		Complete bool                    `json:"complete"`
		Stats    credsync.Applied        `json:"stats"`
		Sources  []credsync.SourceStatus `json:"sources"`
		Warnings []credential.Warning    `json:"warnings"`
		Error    string                  `json:"error,omitempty"`
	}

	CredentialResponse struct {
		credential.Credential
		HasHistory bool `json:"has_history"`
	}
)

func NewHandler(envs environment.Repository, creds credential.Repository, syncer Syncer, scheduler Scheduler) *Handler {
	return &Handler{
		envs:      envs,
		creds:     creds,
		syncer:    syncer,
		scheduler: scheduler,
		now:       time.Now,
	}
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// bindEnvironment decodes and validates the body. A nil request means the
// 400 response has already been written.
func (h *Handler) bindEnvironment(c echo.Context) (*EnvironmentRequest, error) {
	var req EnvironmentRequest
	if err := c.Bind(&req); err != nil {
		return nil, errorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return nil, errorJSON(c, http.StatusBadRequest, "Validation failed: "+err.Error())
	}
	return &req, nil
}

// find loads the :id environment, writing the error response itself.
func (h *Handler) find(c echo.Context) (*environment.Environment, error) {
	env, err := h.envs.FindByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, environment.ErrNotFound) {
		return nil, errorJSON(c, http.StatusNotFound, "Environment not found")
	}
	if err != nil {
		return nil, errorJSON(c, http.StatusInternalServerError, "Failed to fetch environment: "+err.Error())
	}
	return env, nil
}

func (req EnvironmentRequest) applyTo(env *environment.Environment) {
	env.Name = req.Name
	env.Description = req.Description
	env.InstallerHost = req.InstallerHost
	env.InstallerUsername = req.InstallerUsername
	env.InstallerVerifyTLS = req.InstallerVerifyTLS
	env.ManagerHost = req.ManagerHost
	env.ManagerUsername = req.ManagerUsername
	env.ManagerVerifyTLS = req.ManagerVerifyTLS
	env.SyncEnabled = req.SyncEnabled
	env.SyncIntervalMinutes = req.SyncIntervalMinutes

	if req.InstallerPassword != "" {
		env.InstallerPassword = req.InstallerPassword
	}
	if req.ManagerPassword != "" {
		env.ManagerPassword = req.ManagerPassword
	}
	if env.SyncIntervalMinutes <= 0 {
		env.SyncIntervalMinutes = environment.DefaultSyncIntervalMinutes
	}
}

func (h *Handler) List(c echo.Context) error {
	var filters environment.EnvironmentFilters
	switch c.QueryParam("sync_enabled") {
	case "true":
		filters.SyncEnabled = ptr(true)
	case "false":
		filters.SyncEnabled = ptr(false)
	}

	envs, err := h.envs.FindAll(c.Request().Context(), filters)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch environments: "+err.Error())
	}
	return c.JSON(http.StatusOK, envs)
}

func (h *Handler) Create(c echo.Context) error {
	req, err := h.bindEnvironment(c)
	if req == nil {
		return err
	}

	var env environment.Environment
	req.applyTo(&env)
	if !env.HasInstaller() && !env.HasManager() {
		return errorJSON(c, http.StatusBadRequest, environment.ErrNoSource.Error())
	}

	if err := h.envs.Create(c.Request().Context(), &env); err != nil {
		if errors.Is(err, environment.ErrDuplicateName) {
			return errorJSON(c, http.StatusConflict, "Environment name already exists")
		}
		return errorJSON(c, http.StatusInternalServerError, "Failed to create environment: "+err.Error())
	}

	h.schedule(env)
	log.WithField("environment_id", env.ID).Info("environment created")
	return c.JSON(http.StatusCreated, env)
}

func (h *Handler) Show(c echo.Context) error {
	env, err := h.find(c)
	if env == nil {
		return err
	}
	return c.JSON(http.StatusOK, env)
}

func (h *Handler) Update(c echo.Context) error {
	env, err := h.find(c)
	if env == nil {
		return err
	}
	req, err := h.bindEnvironment(c)
	if req == nil {
		return err
	}

	req.applyTo(env)
	if !env.HasInstaller() && !env.HasManager() {
		return errorJSON(c, http.StatusBadRequest, environment.ErrNoSource.Error())
	}

	if err := h.envs.Update(c.Request().Context(), env); err != nil {
		if errors.Is(err, environment.ErrDuplicateName) {
			return errorJSON(c, http.StatusConflict, "Environment name already exists")
		}
		return errorJSON(c, http.StatusInternalServerError, "Failed to update environment: "+err.Error())
	}

	h.schedule(*env)
	return c.JSON(http.StatusOK, env)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.creds.DeleteByEnvironment(ctx, id); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to delete credentials: "+err.Error())
	}
	if err := h.envs.Delete(ctx, id); err != nil {
		if errors.Is(err, environment.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "Environment not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "Failed to delete environment: "+err.Error())
	}

	if h.scheduler != nil {
		h.scheduler.Unschedule(id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Sync runs one pass now. A pass where every source failed answers 502
// with the per-source report.
func (h *Handler) Sync(c echo.Context) error {
	env, err := h.find(c)
	if env == nil {
		return err
	}

	outcome, err := h.syncer.SyncEnvironment(c.Request().Context(), *env)
	res := SyncResponse{
		SyncID:   outcome.Result.SyncID,
		Success:  err == nil,
		Complete: outcome.Result.Complete(),
		Stats:    outcome.Applied,
		Sources:  outcome.Result.Sources,
		Warnings: outcome.Result.Warnings,
	}
	if err != nil {
		res.Error = err.Error()
		var syncErr *credsync.SyncError
		if errors.As(err, &syncErr) {
			return c.JSON(http.StatusBadGateway, res)
		}
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) TestConnection(c echo.Context) error {
	var req TestConnectionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
	}

	var env environment.Environment
	if req.EnvironmentID != "" {
		stored, err := h.envs.FindByID(c.Request().Context(), req.EnvironmentID)
		if errors.Is(err, environment.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "Environment not found")
		}
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "Failed to fetch environment: "+err.Error())
		}
		env = *stored
	}
	overlay(&env, req.EnvironmentRequest)

	cfg := credsync.ConfigFor(env)
	if cfg.Installer == nil && cfg.Manager == nil {
		return errorJSON(c, http.StatusBadRequest, environment.ErrNoSource.Error())
	}

	results := h.syncer.TestConnection(c.Request().Context(), cfg)
	success := true
	for _, r := range results {
		success = success && r.OK
	}
	return c.JSON(http.StatusOK, TestConnectionResponse{Success: success, Results: results})
}

func overlay(env *environment.Environment, req EnvironmentRequest) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&env.InstallerHost, req.InstallerHost)
	set(&env.InstallerUsername, req.InstallerUsername)
	set(&env.InstallerPassword, req.InstallerPassword)
	set(&env.ManagerHost, req.ManagerHost)
	set(&env.ManagerUsername, req.ManagerUsername)
	set(&env.ManagerPassword, req.ManagerPassword)
	if req.InstallerHost != "" {
		env.InstallerVerifyTLS = req.InstallerVerifyTLS
	}
	if req.ManagerHost != "" {
		env.ManagerVerifyTLS = req.ManagerVerifyTLS
	}
}

func (h *Handler) credentials(c echo.Context, envID string) ([]credential.Credential, error) {
	var filters credential.CredentialFilters
	if kind := c.QueryParam("resource_type"); kind != "" {
		filters.ResourceKind = ptr(credential.ResourceKind(kind))
	}
	if source := c.QueryParam("source"); source != "" {
		filters.Provenance = ptr(credential.Provenance(source))
	}
	return h.creds.FindByEnvironment(c.Request().Context(), envID, filters)
}

// Credentials lists the stored credentials of an environment, passwords
// included, flagging those with archived passwords.
func (h *Handler) Credentials(c echo.Context) error {
	env, err := h.find(c)
	if env == nil {
		return err
	}

	creds, err := h.credentials(c, env.ID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch credentials: "+err.Error())
	}

	ids := make([]string, len(creds))
	for i, cred := range creds {
		ids[i] = cred.ID
	}
	history, err := h.creds.HasHistory(c.Request().Context(), ids)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch history: "+err.Error())
	}

	res := make([]CredentialResponse, len(creds))
	for i, cred := range creds {
		res[i] = CredentialResponse{Credential: cred, HasHistory: history[cred.ID]}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportCSV(c echo.Context) error {
	return h.export(c, "csv", export.ContentTypeCSV, export.WriteCSV)
}

func (h *Handler) ExportXLSX(c echo.Context) error {
	return h.export(c, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (h *Handler) export(c echo.Context, ext, contentType string, write func(w io.Writer, rows []export.Row) error) error {
	env, err := h.find(c)
	if env == nil {
		return err
	}

	creds, err := h.credentials(c, env.ID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch credentials: "+err.Error())
	}

	var buf bytes.Buffer
	if err := write(&buf, export.FromCredentials(creds)); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to export credentials: "+err.Error())
	}

	filename := export.Filename(env.Name, ext, h.now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handler) schedule(env environment.Environment) {
	if h.scheduler != nil {
		h.scheduler.Schedule(env)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/test-connection", h.TestConnection)
	g.GET("/:id", h.Show)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/sync", h.Sync)
	g.GET("/:id/credentials", h.Credentials)
	g.GET("/:id/export/csv", h.ExportCSV)
	g.GET("/:id/export/xlsx", h.ExportXLSX)
}
