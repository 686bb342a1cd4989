// JSON API exposed by the serve command: the presentation layer's
// interface to the core.
package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/aegis/internal/connectivity"
	"github.com/mesh-intelligence/aegis/internal/position"
	"github.com/mesh-intelligence/aegis/internal/store"
	enginesync "github.com/mesh-intelligence/aegis/internal/sync"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

// apiDeps bundles what the handlers need. Engine and monitor are nil
// when no authority is configured; the device then runs record-only.
type apiDeps struct {
	store    *store.Store
	engine   *enginesync.Engine
	monitor  *connectivity.Monitor
	resolver *position.Resolver
	log      *logrus.Logger
}

// registerAPI mounts the /api routes.
func registerAPI(router *gin.Engine, deps apiDeps) {
	api := router.Group("/api")

	api.POST("/login", func(c *gin.Context) {
		var body struct {
			ResponderName string `json:"responder_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "responder_name is required"})
			return
		}
		session := types.Session{ResponderName: body.ResponderName, LoginTimestamp: time.Now().UnixMilli()}
		if err := deps.store.PutSession(session); err != nil {
			abortStoreError(c, deps.log, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	api.DELETE("/session", func(c *gin.Context) {
		if err := deps.store.ClearSession(); err != nil {
			abortStoreError(c, deps.log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/status", func(c *gin.Context) {
		pending, err := deps.store.PendingCount()
		if err != nil {
			abortStoreError(c, deps.log, err)
			return
		}

		status := gin.H{
			"online":  deps.monitor != nil && deps.monitor.IsOnline(),
			"pending": pending,
		}
		if deps.engine != nil {
			status["last_sync"] = deps.engine.Status()
		}
		if session, err := deps.store.GetSession(); err == nil {
			status["responder"] = session.ResponderName
		}
		c.JSON(http.StatusOK, status)
	})

	api.POST("/reports", func(c *gin.Context) {
		var input types.ReportInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// A zero coordinate pair means "locate me".
		if input.Latitude == 0 && input.Longitude == 0 {
			pos, fromSource := deps.resolver.Resolve(c.Request.Context())
			input.Latitude = pos.Latitude
			input.Longitude = pos.Longitude
			if !fromSource {
				c.Header("X-Aegis-Position", "default")
			}
		}

		id, err := deps.store.CreateReport(input)
		if err != nil {
			if types.IsStorage(err) {
				abortStoreError(c, deps.log, err)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		body := gin.H{"id": id}
		if pending, err := deps.store.PendingCount(); err == nil {
			body["pending"] = pending
		} else {
			deps.log.WithError(err).Error("pending count failed")
		}
		c.JSON(http.StatusCreated, body)
	})

	api.GET("/reports", func(c *gin.Context) {
		filter := store.Filter{IncidentType: c.Query("type")}
		if c.Query("pending") == "true" {
			pendingOnly := false
			filter.Synced = &pendingOnly
		}

		reports, err := deps.store.ListReports(filter)
		if err != nil {
			abortStoreError(c, deps.log, err)
			return
		}
		c.JSON(http.StatusOK, reports)
	})

	api.POST("/sync", func(c *gin.Context) {
		if deps.engine == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no authority configured"})
			return
		}
		deps.engine.Trigger()
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	})
}

// abortStoreError maps storage failures to 500 without leaking driver
// detail to the shell.
func abortStoreError(c *gin.Context, log *logrus.Logger, err error) {
	log.WithError(err).Error("store operation failed")
	if errors.Is(err, types.ErrEmptyResponder) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}
