package session

import (
	"fmt"

	"github.com/Iron-Ham/capctl/internal/device"
)

// Channel is one input of a simulated session.
type Channel struct {
	class     device.ChannelClass
	index     int
	enabled   bool
	committed bool
}

func newChannel(class device.ChannelClass, index int) *Channel {
	return &Channel{class: class, index: index, enabled: true, committed: true}
}

// Class implements capture.Channel.
func (c *Channel) Class() device.ChannelClass { return c.class }

// Index returns the channel number.
func (c *Channel) Index() int { return c.index }

// Name returns the display name, e.g. "CH1" for an oscilloscope input.
func (c *Channel) Name() string {
	if c.class == device.ChannelDso {
		return fmt.Sprintf("CH%d", c.index+1)
	}
	return fmt.Sprintf("%d", c.index)
}

// Enabled implements capture.Channel.
func (c *Channel) Enabled() bool { return c.enabled }

// Enable implements capture.Channel. The change is live until Commit.
func (c *Channel) Enable(on bool) { c.enabled = on }

// Commit saves the live settings.
func (c *Channel) Commit() { c.committed = c.enabled }

// CommitSettings implements capture.Channel by reapplying the saved settings.
func (c *Channel) CommitSettings() error {
	c.enabled = c.committed
	return nil
}
