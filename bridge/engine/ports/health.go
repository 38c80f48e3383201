package engineports

import "context"

// HealthChecker reports whether a dependency is reachable. Probe failures
// are reported as false, never as errors.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}
