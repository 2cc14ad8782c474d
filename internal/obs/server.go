package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// NewRouter builds the ops endpoint: liveness plus dependency health,
// Prometheus metrics, and a full goroutine dump for stall diagnosis.
func NewRouter(log *zap.Logger, pingers map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{}
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
		c.JSON(status, checks)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/debug/stacks", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", AllStacks())
	})

	return r
}

// Serve runs the ops endpoint until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, log *zap.Logger, pingers map[string]Pinger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(log, pingers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		uri := c.Request.RequestURI

		c.Next()

		l.Debug("http_request",
			zap.String("method", method),
			zap.String("uri", uri),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
