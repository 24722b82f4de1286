// Package api exposes the mixtape service over HTTP with Gin.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tapedeck/mixtape/internal/builder"
)

// BuildService is the builder surface the API needs.
type BuildService interface {
	Enqueue(req builder.Request) (string, error)
	Status(id string) (builder.Status, bool)
	OutputPath(id string) (string, bool)
	QueueSize() int
}

// PreviewService reports preview playback state. Optional.
type PreviewService interface {
	Status() (id, title string, position, duration time.Duration)
	ListenerCount() int
	Enqueue(id, path, title string) bool
	Skip()
}

// Options wires the router's collaborators. StreamHandler, WebRTCHandler
// and Preview may be nil when preview streaming is disabled.
type Options struct {
	Builds        BuildService
	Preview       PreviewService
	StreamHandler http.Handler
	WebRTCHandler http.Handler
	Index         http.Handler
	Log           *logrus.Logger
}

// NewRouter builds the Gin engine with all routes registered.
func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Log))

	if opts.Index != nil {
		r.GET("/", gin.WrapH(opts.Index))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/mixtapes", createMixtapeHandler(opts.Builds))
		apiGroup.GET("/mixtapes/:id", statusHandler(opts.Builds))
		apiGroup.GET("/mixtapes/:id/download", downloadHandler(opts.Builds))
		apiGroup.GET("/queue", queueHandler(opts.Builds))

		if opts.Preview != nil {
			apiGroup.GET("/preview", previewStatusHandler(opts.Preview))
			apiGroup.POST("/preview/:id", previewEnqueueHandler(opts.Builds, opts.Preview))
			apiGroup.POST("/preview/skip", previewSkipHandler(opts.Preview))
		}
	}

	if opts.StreamHandler != nil {
		r.GET("/stream", gin.WrapH(opts.StreamHandler))
	}
	if opts.WebRTCHandler != nil {
		r.POST("/webrtc", gin.WrapH(opts.WebRTCHandler))
		r.OPTIONS("/webrtc", gin.WrapH(opts.WebRTCHandler))
	}

	return r
}

func createMixtapeHandler(b BuildService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req builder.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		id, err := b.Enqueue(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id})
	}
}

func statusHandler(b BuildService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		st, ok := b.Status(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown build"})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func downloadHandler(b BuildService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		st, ok := b.Status(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown build"})
			return
		}
		path, ready := b.OutputPath(id)
		if !ready {
			c.JSON(http.StatusConflict, gin.H{"error": "build not finished", "stage": st.Stage})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+st.Title+`.mp3"`)
		c.File(path)
	}
}

func queueHandler(b BuildService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"waiting": b.QueueSize()})
	}
}

func previewStatusHandler(p PreviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, title, pos, dur := p.Status()
		c.JSON(http.StatusOK, gin.H{
			"id":        id,
			"title":     title,
			"position":  pos.Seconds(),
			"duration":  dur.Seconds(),
			"listeners": p.ListenerCount(),
		})
	}
}

// previewEnqueueHandler queues a finished mixtape for preview playback.
func previewEnqueueHandler(b BuildService, p PreviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		st, ok := b.Status(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown build"})
			return
		}
		path, ready := b.OutputPath(id)
		if !ready {
			c.JSON(http.StatusConflict, gin.H{"error": "build not finished", "stage": st.Stage})
			return
		}
		if !p.Enqueue(id, path, st.Title) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "preview queue is full"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id})
	}
}

func previewSkipHandler(p PreviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.Skip()
		c.JSON(http.StatusOK, gin.H{"skipped": true})
	}
}

// requestLogger logs one line per request through logrus.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	entry := log.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Info("request")
	}
}
