// Package session provides a simulated capture session and the per-device
// lock that keeps two controllers off the same instrument.
//
// [Simulated] implements capture.Session. Each acquisition runs on a worker
// goroutine that posts collect-start, progress and collect-end notifications
// to an event.Mailbox; the control goroutine drains the mailbox onto the
// bus. Acquisition wall time follows the committed sample limit and rate,
// scaled by the configured speed factor.
package session
