// Package event provides the capability-change notifier for capctl.
//
// Components that derive state from device capabilities (the rate and
// duration selectors, the capture controller, the front ends) react to
// integer message codes rather than calling each other directly.
//
// # Main Types
//
//   - [Bus]: synchronous, ordered pub-sub dispatcher
//   - [Listener]: single-method OnMessage(code) capability
//   - [Mailbox]: queue for events posted by capture worker goroutines
//   - [Code]: message code enumeration (device list update, collect start/end,
//     device options begin/end/updated, duration updated, mode changed)
//
// # Delivery
//
// Handlers run on the publishing goroutine in registration order, specific
// subscriptions before wildcard ones. A panicking handler is recovered and
// logged and the remaining handlers still run.
//
// Workers never publish directly. They post to a Mailbox and the control
// goroutine drains it, so every listener observes events serialized in
// arrival order:
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.AddListener(controller)
//
//	mb := event.NewMailbox(0)
//	for {
//	    select {
//	    case e := <-mb.C():
//	        bus.Publish(e)
//	    case <-ctx.Done():
//	        return
//	    }
//	}
package event
