package sim

import (
	"errors"

	"github.com/michcald/mc13192"
)

var errNotInterrupt = errors.New("sim: line has no interrupt")

// Line is a host-driven control line. Lines that the chip listens to (run,
// attention, reset, chip select) notify it on every level change; the front
// end lines only record their level.
type Line struct {
	chip     *Chip
	level    mc13192.Level
	driven   bool
	onChange func(mc13192.Level)
}

func (l *Line) Out(v mc13192.Level) error {
	l.chip.locked(func() {
		l.driven = true
		if v == l.level {
			return
		}
		l.level = v
		if l.onChange != nil {
			l.onChange(v)
		}
	})
	return nil
}

func (l *Line) In(mc13192.Pull) error { return nil }

func (l *Line) Read() mc13192.Level {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	return l.level
}

func (l *Line) Watch(mc13192.Edge, func()) error { return errNotInterrupt }
func (l *Line) Unwatch() error                   { return nil }

// irqLine is the chip's interrupt output. It is low while any status bit is
// pending. Watch runs the handler on a worker goroutine once per falling edge.
type irqLine struct {
	chip  *Chip
	low   bool
	edges chan struct{}
	stop  chan struct{}
}

func (p *irqLine) Out(mc13192.Level) error { return nil }
func (p *irqLine) In(mc13192.Pull) error   { return nil }

func (p *irqLine) Read() mc13192.Level {
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()
	return mc13192.Level(!p.low)
}

func (p *irqLine) Watch(edge mc13192.Edge, handler func()) error {
	if edge != mc13192.FallingEdge && edge != mc13192.BothEdges {
		return errNotInterrupt
	}

	edges := make(chan struct{}, 1)
	stop := make(chan struct{})
	p.chip.mu.Lock()
	p.edges, p.stop = edges, stop
	if p.low {
		edges <- struct{}{}
	}
	p.chip.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-edges:
				select {
				case <-stop:
					return
				default:
					handler()
				}
			}
		}
	}()
	return nil
}

func (p *irqLine) Unwatch() error {
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
		p.edges = nil
	}
	return nil
}

// set moves the line and queues an edge for the worker on a falling
// transition. Call with the chip lock held.
func (p *irqLine) set(low bool) {
	if low && !p.low && p.edges != nil {
		select {
		case p.edges <- struct{}{}:
		default:
		}
	}
	p.low = low
}
