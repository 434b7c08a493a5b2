// Package api exposes the local management API for inspecting and operating
// on connections over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/envlink/envlink/internal/config"
	"github.com/envlink/envlink/internal/connection"
	"github.com/envlink/envlink/internal/manager"
	"github.com/envlink/envlink/internal/platform"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Handler aggregates the manager, platform client and config for the
// management endpoints.
type Handler struct {
	cfg    *config.Config
	mgr    *manager.Manager
	client *platform.Client
}

// NewHandler creates a new management handler instance.
func NewHandler(cfg *config.Config, mgr *manager.Manager, client *platform.Client) *Handler {
	return &Handler{cfg: cfg, mgr: mgr, client: client}
}

// SetConfig updates the in-memory config reference when the server hot-reloads.
func (h *Handler) SetConfig(cfg *config.Config) { h.cfg = cfg }

// Middleware enforces access control for management endpoints. All requests
// require a valid management key; remote clients additionally require
// allow-remote to be enabled.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !(clientIP == "127.0.0.1" || clientIP == "::1") {
			if !h.cfg.RemoteManagement.AllowRemote {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "remote management disabled"})
				return
			}
		}
		secret := h.cfg.RemoteManagement.SecretKey
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management key not set"})
			return
		}

		var provided string
		if ah := c.GetHeader("Authorization"); ah != "" {
			parts := strings.SplitN(ah, " ", 2)
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
				provided = parts[1]
			} else {
				provided = ah
			}
		}
		if provided == "" {
			provided = c.GetHeader("X-Management-Key")
		}
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing management key"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(secret), []byte(provided)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
			return
		}

		c.Next()
	}
}

// Register wires the management routes onto the engine.
func (h *Handler) Register(engine *gin.Engine) {
	group := engine.Group("/v1", h.Middleware())
	group.GET("/connections", h.listConnections)
	group.GET("/connections/current", h.currentConnection)
	group.POST("/connections/current/forget", h.forgetConnection)
	group.POST("/connections/:name/connect", h.connect)
	group.DELETE("/connections/:name", h.deleteConnection)
	group.DELETE("/connections", h.deleteAllConnections)
	group.GET("/whoami", h.whoami)
}

// connectionView is the redacted wire shape of a connection record.
type connectionView struct {
	Name              string `json:"name"`
	EndpointURL       string `json:"endpoint_url"`
	LoginType         string `json:"login_type"`
	Principal         string `json:"principal,omitempty"`
	TenantID          string `json:"tenant_id,omitempty"`
	EnvironmentKind   string `json:"environment_kind,omitempty"`
	UserPrincipalName string `json:"user_principal_name,omitempty"`
	Authenticated     bool   `json:"authenticated"`
}

func viewOf(rec *connection.Record) connectionView {
	return connectionView{
		Name:              rec.Name,
		EndpointURL:       rec.EndpointURL,
		LoginType:         string(rec.LoginType),
		Principal:         rec.Principal,
		TenantID:          rec.TenantID,
		EnvironmentKind:   rec.EnvironmentKind,
		UserPrincipalName: rec.UserPrincipalName,
		Authenticated:     rec.AccessToken != "",
	}
}

func (h *Handler) listConnections(c *gin.Context) {
	records, err := h.mgr.ListConnections()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]connectionView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewOf(rec))
	}
	c.JSON(http.StatusOK, gin.H{"connections": views})
}

func (h *Handler) currentConnection(c *gin.Context) {
	rec, err := h.mgr.CurrentConnection()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active connection"})
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

func (h *Handler) forgetConnection(c *gin.Context) {
	if err := h.mgr.Forget(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) connect(c *gin.Context) {
	rec, err := h.mgr.Connect(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

// API deletes skip the interactive confirmation gate; issuing the DELETE is
// the explicit confirmation.
func apiConfirm(string) bool { return true }

func (h *Handler) deleteConnection(c *gin.Context) {
	// Delete directly through the registry: management clients confirm via
	// the request itself, not a terminal prompt.
	if err := h.mgr.DeleteConnectionConfirmed(c.Param("name"), apiConfirm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteAllConnections(c *gin.Context) {
	if err := h.mgr.DeleteAllConnectionsConfirmed(apiConfirm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) whoami(c *gin.Context) {
	info, err := h.client.WhoAmI(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         info.UserID,
		"organization_id": info.OrganizationID,
		"principal_name":  info.PrincipalName,
	})
}

// Run starts the management API server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, handler *Handler) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.Register(engine)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RemoteManagement.Port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("management API shutdown failed: %v", err)
		}
	}()

	log.Infof("management API listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
