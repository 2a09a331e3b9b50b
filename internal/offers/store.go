package offers

import (
	"errors"
	"sync"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	// ErrDuplicate is returned by Put when the offer id is already present.
	ErrDuplicate = errors.New("offer already exists")
	// ErrNotFound is returned when the offer id is unknown to the store.
	ErrNotFound = errors.New("offer not found")
	// ErrConflict is returned by CompareAndTransition when the current status
	// does not match the expected one, i.e. another caller transitioned first.
	ErrConflict = errors.New("offer status conflict")
)

// Store holds the currently pending offers for one running process. It owns
// its map under a mutex; every state change goes through CompareAndTransition
// so concurrent acceptances resolve to exactly one winner.
type Store struct {
	mu     sync.RWMutex
	offers map[string]models.Offer
}

func NewStore() *Store {
	return &Store{offers: make(map[string]models.Offer)}
}

// Put inserts a new offer with status offered. Repeated delivery of the same
// ingress event is rejected with ErrDuplicate.
func (s *Store) Put(o models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[o.ID]; ok {
		return ErrDuplicate
	}
	o.Status = models.StatusOffered
	o.AssignedDriverID = ""
	s.offers[o.ID] = o
	return nil
}

func (s *Store) Get(id string) (models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return models.Offer{}, ErrNotFound
	}
	return o, nil
}

// CompareAndTransition atomically verifies the offer currently holds expected
// before applying next. driverID is recorded when transitioning to assigned
// and ignored otherwise. It returns the updated offer on success.
func (s *Store) CompareAndTransition(id string, expected, next models.OfferStatus, driverID string) (models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return models.Offer{}, ErrNotFound
	}
	if o.Status != expected {
		return models.Offer{}, ErrConflict
	}
	o.Status = next
	if next == models.StatusAssigned {
		o.AssignedDriverID = driverID
	}
	s.offers[id] = o
	return o, nil
}

// Remove evicts an offer after completion or external expiry. Removing an
// unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offers, id)
}

// AssignedTo returns the offer currently assigned to the given driver, if any.
// Drivers carry at most one active job at a time in practice, so the first
// match wins.
func (s *Store) AssignedTo(channelID string) (models.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.offers {
		if o.Status == models.StatusAssigned && o.AssignedDriverID == channelID {
			return o, true
		}
	}
	return models.Offer{}, false
}

// Len reports the number of live offers, exported for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}
