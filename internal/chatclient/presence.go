package chatclient

import (
	"math/rand/v2"
	"sync"
	"time"

	"dmrelay/internal/chatclient/store"
	"dmrelay/internal/pkg/logx"
)

// DefaultPresenceInterval is how often simulated presence flips.
const DefaultPresenceInterval = 12 * time.Second

// PresenceSimulator periodically randomizes the online flag of every contact.
//
// This deliberately reproduces the reference behavior: displayed presence is
// simulated, not derived from live connection membership, so it can diverge
// from the registry's view. Callers wanting truthful presence should consult
// the relay's registry instead of the contact flags.
type PresenceSimulator struct {
	store    *store.Store
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPresenceSimulator constructs a simulator over the given store.
func NewPresenceSimulator(st *store.Store, interval time.Duration) *PresenceSimulator {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}

	return &PresenceSimulator{
		store:    st,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine.
func (p *PresenceSimulator) Start() {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.shuffle()
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop terminates the ticker. Safe to call more than once.
func (p *PresenceSimulator) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

func (p *PresenceSimulator) shuffle() {
	contacts := p.store.Contacts()
	for _, c := range contacts {
		p.store.SetOnline(c.ID, rand.IntN(2) == 0)
	}

	logx.Debug("Presence simulation tick", "contacts", len(contacts))
}
