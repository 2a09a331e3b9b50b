package storage

import (
	"sync"

	"github.com/example/ride-dispatch/internal/models"
)

// Mirror is the durable audit copy of offers and drivers. The in-memory
// offer store remains the source of truth for pending offers within one
// process; the mirror is write-mostly and only drivers are read back (to
// reseed the directory after a restart).
type Mirror interface {
	SaveOffer(o *models.Offer) error
	UpdateOfferStatus(id string, status models.OfferStatus, driverID string) error
	SaveDriver(d *models.Driver) error
	ListDrivers() ([]models.Driver, error)
}

type MemoryMirror struct {
	mu      sync.RWMutex
	offers  map[string]models.Offer
	drivers map[string]models.Driver
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{
		offers:  make(map[string]models.Offer),
		drivers: make(map[string]models.Driver),
	}
}

func (m *MemoryMirror) SaveOffer(o *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = *o
	return nil
}

func (m *MemoryMirror) UpdateOfferStatus(id string, status models.OfferStatus, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil
	}
	o.Status = status
	if driverID != "" {
		o.AssignedDriverID = driverID
	}
	m.offers[id] = o
	return nil
}

func (m *MemoryMirror) SaveDriver(d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ChannelID] = *d
	return nil
}

func (m *MemoryMirror) ListDrivers() ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	return out, nil
}

// GetOffer exists for tests and ad-hoc inspection.
func (m *MemoryMirror) GetOffer(id string) (models.Offer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[id]
	return o, ok
}
