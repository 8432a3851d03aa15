package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// CheckFunc reports whether a dependency is usable
type CheckFunc func(ctx context.Context) error

// Dependencies holds everything the probe routes need
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	// Checks are run by the readiness probe, keyed by dependency name
	Checks map[string]CheckFunc
}

// SetupRouter configures and returns the Gin router with the probe routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.ServiceName,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		failed := runChecks(c.Request.Context(), deps)
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"failed": failed,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return r
}

// runChecks returns the sorted names of the checks that failed
func runChecks(ctx context.Context, deps *Dependencies) []string {
	failed := []string{}

	for name, check := range deps.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			deps.Logger.Warn("Readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			failed = append(failed, name)
		}
	}

	sort.Strings(failed)
	return failed
}
