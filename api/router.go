package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// NewRouter builds the HTTP handler serving state and stream, with CORS.
func NewRouter(state *State, hub *Hub) http.Handler {
	router := gin.New()
	router.Use(requestLogger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logrus.Errorf("api: panic serving %s: %v", c.Request.URL.Path, recovered)
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.statusView())
		})
		api.GET("/summary", func(c *gin.Context) {
			summary, status := state.finalSummary()
			if summary == nil {
				abort(c, http.StatusConflict, "RUN_NOT_FINISHED", "run is "+status)
				return
			}
			c.JSON(http.StatusOK, summary)
		})
		api.GET("/auctions", func(c *gin.Context) {
			auctions := state.auctions()
			c.JSON(http.StatusOK, gin.H{"auctions": auctions, "count": len(auctions)})
		})
		api.GET("/auctions/:time", func(c *gin.Context) {
			t, err := strconv.ParseFloat(c.Param("time"), 64)
			if err != nil || math.IsNaN(t) {
				abort(c, http.StatusBadRequest, "INVALID_PARAM", "time must be a number")
				return
			}
			for _, a := range state.auctions() {
				if a.Time == t {
					c.JSON(http.StatusOK, a)
					return
				}
			}
			abort(c, http.StatusNotFound, "NOT_FOUND", "no auction at time "+c.Param("time"))
		})
		api.GET("/vessels", func(c *gin.Context) {
			vessels := state.vesselViews()
			c.JSON(http.StatusOK, gin.H{"vessels": vessels, "count": len(vessels)})
		})
		api.GET("/events", func(c *gin.Context) {
			limit := 100
			if raw := c.Query("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					abort(c, http.StatusBadRequest, "INVALID_PARAM", "limit must be a non-negative integer")
					return
				}
				limit = n
			}
			events := state.recentEvents(limit)
			c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
		})
		api.GET("/stream", gin.WrapH(hub))
	}

	router.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "NOT_FOUND", "Not found")
	})

	return cors.Default().Handler(router)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.Debugf("api: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
