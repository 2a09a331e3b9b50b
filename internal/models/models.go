package models

import "time"

// OfferStatus is the lifecycle state of a dispatched offer.
type OfferStatus string

const (
	StatusOffered   OfferStatus = "offered"
	StatusAssigned  OfferStatus = "assigned"
	StatusCompleted OfferStatus = "completed"
)

func (s OfferStatus) IsValid() bool {
	switch s {
	case StatusOffered, StatusAssigned, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s OfferStatus) String() string { return string(s) }

// Stop is one intermediate waypoint of an offer.
type Stop struct {
	Address string `json:"address"`
	Note    string `json:"note"`
}

// Offer is one dispatchable job. The descriptive payload is immutable after
// ingress; only Status and AssignedDriverID change, and only through the
// offer store's compare-and-transition primitive.
type Offer struct {
	ID          string      `json:"id"`
	RequesterID string      `json:"requester_id"`
	Phone       string      `json:"phone,omitempty"`
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	Weight      string      `json:"weight"`
	Category    string      `json:"category"`
	Indications string      `json:"indications,omitempty"`
	PriceQuote  float64     `json:"price_quote"`
	DistanceKm  float64     `json:"distance_km"`
	Stops       []Stop      `json:"stops,omitempty"`
	Status      OfferStatus `json:"status"`
	// AssignedDriverID is set exactly when Status is assigned or completed.
	AssignedDriverID string    `json:"assigned_driver_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Driver is a registered participant, keyed by its messaging channel identity.
type Driver struct {
	ChannelID    string    `json:"channel_id"`
	DisplayName  string    `json:"display_name"`
	PlateNumber  string    `json:"plate_number"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Intent is an outbound instruction the coordinator emits for the messaging
// layer to execute. Delivery is best-effort and happens outside the
// coordinator's critical section.
type Intent interface{ intent() }

// NotifyIntent asks the gateway to show a freshly dispatched offer to one driver.
type NotifyIntent struct {
	ChannelID string `json:"channel_id"`
	Offer     Offer  `json:"offer"`
}

// DecisionIntent confirms the winning driver of an offer.
type DecisionIntent struct {
	Winner string `json:"winner"`
	Offer  Offer  `json:"offer"`
}

// LostIntent tells a previously notified driver the offer went to someone else.
type LostIntent struct {
	ChannelID string `json:"channel_id"`
	OfferID   string `json:"offer_id"`
}

// CompletionIntent reports a finished offer for downstream requester notification.
type CompletionIntent struct {
	Offer Offer `json:"offer"`
}

func (NotifyIntent) intent()     {}
func (DecisionIntent) intent()   {}
func (LostIntent) intent()       {}
func (CompletionIntent) intent() {}

// OfferEvent is the audit record published to Kafka on every lifecycle edge.
type OfferEvent struct {
	Kind  string    `json:"kind"` // created, assigned, completed
	Offer Offer     `json:"offer"`
	At    time.Time `json:"at"`
}
