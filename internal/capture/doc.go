// Package capture drives a capture session through the run, stop and
// instant controls of the sampling bar.
//
// A [Controller] owns the capture [State]. It commits the selected rate and
// duration before every start, routes oscilloscope starts through the zero
// calibration flow when the device asks for it, and tracks which controls
// the front end should offer in the current state.
//
// # Threading
//
// The Controller is not safe for concurrent use. All calls, including
// [Controller.OnMessage] deliveries from the event bus, must happen on one
// control goroutine. Session workers post their notifications to an
// event.Mailbox which that goroutine drains.
//
// # Basic Usage
//
//	ctl := capture.NewController(agent, sess,
//	    capture.WithEnumerator(registry),
//	    capture.WithLogger(logger),
//	)
//	bus.AddListener(ctl)
//	if err := ctl.RefreshDevices(); err != nil {
//	    return err
//	}
//	if err := ctl.RunStop(ctx); err != nil {
//	    return err
//	}
package capture
