package zone

import (
	"context"
	"log"
	"sync"
)

// Guard guarantees no output is left asserted on process exit. OnShutdown
// runs the force-stop exactly once no matter how many termination paths
// reach it.
type Guard struct {
	controller *Controller
	once       sync.Once
}

// NewGuard creates a shutdown guard over the controller.
func NewGuard(controller *Controller) *Guard {
	return &Guard{controller: controller}
}

// OnShutdown force-stops every active zone. Safe to call from multiple
// termination paths; only the first call does the work.
func (g *Guard) OnShutdown(ctx context.Context) {
	g.once.Do(func() {
		log.Println("Shutdown guard: stopping all active zones")
		g.controller.ForceStopAll(ctx)
	})
}
