package channel

import (
	"strings"

	"github.com/laonet/laocoord/lib/common"
)

const (
	Root            Channel = "/root"
	ConsensusSuffix string  = "consensus"
)

// Channel is a hierarchical path like `/root/<lao-id>/consensus`.
type Channel string

func NewLaoChannel(laoID string) Channel {
	return Root.Sub(laoID)
}

func NewConsensusChannel(laoID string) Channel {
	return NewLaoChannel(laoID).Sub(ConsensusSuffix)
}

func (c Channel) String() string {
	return string(c)
}

func (c Channel) Sub(name string) Channel {
	return Channel(string(c) + "/" + name)
}

func (c Channel) parts() []string {
	return strings.Split(strings.TrimPrefix(string(c), "/"), "/")
}

// LaoID returns the organization the channel belongs to; empty for the root.
func (c Channel) LaoID() string {
	parts := c.parts()
	if len(parts) < 2 || parts[0] != "root" {
		return ""
	}

	return parts[1]
}

func (c Channel) Parent() Channel {
	i := strings.LastIndex(string(c), "/")
	if i < 1 {
		return c
	}

	return c[:i]
}

func (c Channel) IsConsensus() bool {
	parts := c.parts()
	return len(parts) == 3 && parts[2] == ConsensusSuffix
}

// IsValid checks c starts at the root and the lao id is base64url.
func (c Channel) IsValid() bool {
	if c == Root {
		return true
	}
	if !strings.HasPrefix(string(c), string(Root)+"/") {
		return false
	}

	for _, p := range c.parts() {
		if len(p) < 1 {
			return false
		}
	}

	return common.IsBase64(c.LaoID())
}
