package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promMu        sync.Mutex
	promInstances = map[string]*fiberprometheus.FiberPrometheus{}
)

// InitMetrics builds the Prometheus HTTP middleware for the service. The
// collectors live in the default registry, so repeated calls for the same
// service return the first instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promMu.Lock()
	defer promMu.Unlock()
	if prom, ok := promInstances[serviceName]; ok {
		return prom
	}
	prom := fiberprometheus.New(serviceName)
	prom.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	promInstances[serviceName] = prom
	return prom
}

// MetricsMiddleware returns the request instrumentation handler of prom.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
