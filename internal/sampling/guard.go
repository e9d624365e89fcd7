package sampling

// Guard suppresses change notifications while a selector rebuilds itself.
// The zero value is inactive. A Guard is not safe for concurrent use; it
// belongs to the control goroutine.
type Guard struct {
	active bool
}

// Active reports whether notifications are currently suppressed.
func (g *Guard) Active() bool {
	return g.active
}

// Suppress activates the guard and returns a function restoring the prior
// state. Callers defer the returned function so every exit path restores it.
func (g *Guard) Suppress() (restore func()) {
	prev := g.active
	g.active = true
	return func() { g.active = prev }
}
