// Package events provides the in-process event bus the runtime uses for
// notifications between services, stores and view-models.
//
// # Delivery
//
// Emission is synchronous. EmitSync calls every subscriber of the event in
// the order it subscribed and returns once they have all run:
//
//	bus := events.New(events.WithLogger(logger))
//	off := bus.Subscribe("song.added", func(p any) error {
//	    fmt.Println("added", p)
//	    return nil
//	})
//	bus.EmitSync("song.added", song)
//	off()
//
// # Failure isolation
//
// A handler that returns an error, or panics, is logged at error level and
// skipped; the remaining handlers of the same emission still run. Emitters
// never see subscriber failures.
//
// # Once
//
//	bus.Once("app.booted", func(any) error { return warmCaches() })
//
// The subscription is removed before the handler is invoked, so a nested
// EmitSync of the same event cannot call it a second time.
package events
