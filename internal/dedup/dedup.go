package dedup

import "sync"

type flight struct {
	done  chan struct{}
	value []byte
	err   error
}

// Group collapses concurrent calls for the same key into a single
// execution. The first caller runs the function; everyone else arriving
// before it settles blocks and receives the same result. Once a flight
// settles its entry is gone, so a later call starts fresh.
type Group struct {
	mutex   sync.Mutex
	flights map[string]*flight
}

func NewGroup() *Group {
	return &Group{
		flights: make(map[string]*flight),
	}
}

// Do returns the result of fn for key, running fn at most once across
// all concurrent callers of the same key. Waiters block until the
// running flight settles.
func (g *Group) Do(key string, fn func() ([]byte, error)) ([]byte, error) {
	g.mutex.Lock()
	if f, ok := g.flights[key]; ok {
		g.mutex.Unlock()
		<-f.done
		return f.value, f.err
	}

	f := &flight{done: make(chan struct{})}
	g.flights[key] = f
	g.mutex.Unlock()

	f.value, f.err = fn()

	// Remove the entry before releasing waiters so a caller arriving
	// after settlement always starts a fresh flight.
	g.mutex.Lock()
	delete(g.flights, key)
	g.mutex.Unlock()
	close(f.done)

	return f.value, f.err
}

// Pending reports how many flights are currently in progress.
func (g *Group) Pending() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.flights)
}
