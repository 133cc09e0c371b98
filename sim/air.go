package sim

import "sync"

// Air links chips. A frame sent by one chip reaches every other chip that is
// receiving on the same channel, always with a good CRC.
type Air struct {
	mu    sync.Mutex
	chips []*Chip
}

func NewAir() *Air {
	return &Air{}
}

// Join puts c on the air.
func (a *Air) Join(c *Chip) {
	a.mu.Lock()
	a.chips = append(a.chips, c)
	a.mu.Unlock()

	c.mu.Lock()
	c.air = a
	c.mu.Unlock()
}

func (a *Air) send(from *Chip, frame []byte) {
	a.mu.Lock()
	chips := append([]*Chip(nil), a.chips...)
	a.mu.Unlock()

	ch := from.Channel()
	for _, c := range chips {
		if c != from && c.Channel() == ch {
			c.Deliver(frame, true)
		}
	}
}
