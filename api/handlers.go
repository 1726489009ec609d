package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/imubridge/client"
	"github.com/luma/imubridge/protocol"
	"github.com/luma/imubridge/storage"
)

const storeTimeout = 3 * time.Second

type startRequest struct {
	Interval uint32 `json:"interval" binding:"required,min=1,max=65535"`
}

func (h *handlers) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *handlers) startSensor(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, client.Result{Success: false, Message: err.Error()})
		return
	}

	h.respond(c, h.controller.StartSensor(uint16(req.Interval)))
}

func (h *handlers) stopSensor(c *gin.Context) {
	h.respond(c, h.controller.StopSensor())
}

func (h *handlers) respond(c *gin.Context, result client.Result) {
	if !result.Success {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handlers) reading(c *gin.Context) {
	doc, err := h.store.Backup()
	if err != nil {
		h.log.Warn("Failed to read store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if string(doc) == "{}" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}

	c.Data(http.StatusOK, "application/json", doc)
}

func (h *handlers) quantity(c *gin.Context) {
	q := protocol.Quantity(c.Param("quantity"))
	if _, ok := (protocol.Reading{}).Value(q); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown quantity " + string(q)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	value, err := h.store.Get(ctx, []byte(q))
	if errors.Is(err, storage.ErrKeyNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}

	if err != nil {
		h.log.Warn("Failed to read store", zap.String("quantity", string(q)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", value)
}
