package ledger

import "sync"

// Ledger records which offers each driver has been told about. Membership in
// the ledger gates acceptance eligibility: a driver may only accept an offer
// it was notified of. Entries are written at dispatch time and cleared in one
// batch when the offer leaves the offered state.
type Ledger struct {
	mu sync.RWMutex
	// channel id -> set of offer ids
	notified map[string]map[string]struct{}
}

func New() *Ledger {
	return &Ledger{notified: make(map[string]map[string]struct{})}
}

// RecordNotified adds offerID to the driver's notified set. Duplicate calls
// are no-ops.
func (l *Ledger) RecordNotified(channelID, offerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.notified[channelID]
	if !ok {
		set = make(map[string]struct{})
		l.notified[channelID] = set
	}
	set[offerID] = struct{}{}
}

func (l *Ledger) IsNotified(channelID, offerID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.notified[channelID][offerID]
	return ok
}

// NotifiedOf returns every driver that was told about the offer. Callers use
// it to capture the fan-out audience before ClearOffer wipes the entries.
func (l *Ledger) NotifiedOf(offerID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for ch, set := range l.notified {
		if _, ok := set[offerID]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// OffersFor returns the offer ids the driver is currently eligible to accept.
func (l *Ledger) OffersFor(channelID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set := l.notified[channelID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// ClearOffer removes offerID from every driver's set. Idempotent.
func (l *Ledger) ClearOffer(offerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch, set := range l.notified {
		delete(set, offerID)
		if len(set) == 0 {
			delete(l.notified, ch)
		}
	}
}
