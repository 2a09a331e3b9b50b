package directory

import (
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// Memory is the in-process driver directory. Read-mostly: the coordinator
// lists and looks up drivers, the onboarding wizard appends them.
type Memory struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewMemory() *Memory {
	return &Memory{drivers: make(map[string]models.Driver)}
}

// Seed loads previously registered drivers, typically from the durable
// mirror at startup. Existing entries win over seeded ones.
func (m *Memory) Seed(drivers []models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drivers {
		if _, ok := m.drivers[d.ChannelID]; !ok {
			m.drivers[d.ChannelID] = d
		}
	}
	observability.DriversRegistry.Set(float64(len(m.drivers)))
}

// Add registers a driver. The wizard validates name and plate before calling.
func (m *Memory) Add(d models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = time.Now()
	}
	m.drivers[d.ChannelID] = d
	observability.DriversRegistry.Set(float64(len(m.drivers)))
}

// List returns a stable snapshot of every registered driver.
func (m *Memory) List() []models.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

func (m *Memory) FindByChannel(channelID string) (models.Driver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[channelID]
	return d, ok
}
