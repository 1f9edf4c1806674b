package worker

import (
	"context"

	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/internal/service"
)

// StartSecurityWorker wires the event listeners that react to account
// activity: the brute force guard, the notification stubs and the
// authentication outcome counters.
func StartSecurityWorker(dispatcher events.Dispatcher, bruteForce *service.BruteForceService, notifications *service.NotificationService, metrics *observability.Metrics) {
	if bruteForce != nil {
		bruteForce.RegisterHandlers(dispatcher)
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if dispatcher != nil && metrics != nil {
		for _, eventType := range []events.EventType{
			events.EventLoginSucceeded,
			events.EventLoginFailed,
			events.EventAccountLocked,
		} {
			dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
				metrics.RecordAuthOutcome(string(event.Type))
				return nil
			})
		}
	}
}
