package chat

import (
	"PPChat/logger"
	"PPChat/service/metrics"

	"go.uber.org/zap"
)

// Dispatcher pushes server events to a user's live connection, if any.
// Delivery is best effort: offline users and full queues drop the event.
type Dispatcher struct {
	reg *Registry
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch never blocks and never fails the caller.
func (d *Dispatcher) Dispatch(userID, event string, payload any) bool {
	c, ok := d.reg.Lookup(userID)
	if !ok {
		metrics.DispatchTotal.WithLabelValues(event, "offline").Inc()
		return false
	}
	if !c.SendFrame(event, payload) {
		metrics.DispatchTotal.WithLabelValues(event, "dropped").Inc()
		logger.Debug("[Dispatch] queue full or closed", zap.String("user", userID), zap.String("event", event))
		return false
	}
	metrics.DispatchTotal.WithLabelValues(event, "delivered").Inc()
	return true
}
