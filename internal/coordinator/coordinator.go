package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/offers"
)

// Directory is the read side of the driver registry.
type Directory interface {
	List() []models.Driver
	FindByChannel(channelID string) (models.Driver, bool)
}

// Deliverer executes outbound intents. Delivery is asynchronous-friendly and
// at-least-once; a failed delivery never reverses coordinator state.
type Deliverer interface {
	Deliver(ctx context.Context, in models.Intent) error
}

// Mirror persists offer records for audit and cross-process recovery. It is
// never read back into the live store mid-flight.
type Mirror interface {
	SaveOffer(o *models.Offer) error
	UpdateOfferStatus(id string, status models.OfferStatus, driverID string) error
}

// EventPublisher streams lifecycle events to the audit pipeline.
type EventPublisher interface {
	PublishOfferEvent(kind string, o models.Offer) error
}

// Payments holds funds when an offer is assigned and captures them on
// completion. Best-effort on both edges.
type Payments interface {
	OnAssigned(ctx context.Context, o models.Offer) error
	OnCompleted(ctx context.Context, o models.Offer) error
}

// Coordinator serializes every mutating operation on the offer store and the
// notification ledger under one mutex. The lock is never held across
// collaborator I/O: intents, persistence, events and payments all run on
// values captured inside the critical section, after release.
type Coordinator struct {
	mu sync.Mutex

	Directory Directory
	Offers    *offers.Store
	Ledger    *ledger.Ledger
	Gateway   Deliverer

	Mirror   Mirror         // optional
	Events   EventPublisher // optional
	Payments Payments       // optional
	Logger   *slog.Logger   // optional
}

// AcceptResult is the outcome of a winning or idempotently repeated accept.
type AcceptResult struct {
	Offer models.Offer
	// AlreadyYours is set when the winner re-sends accept after winning; no
	// intents are re-emitted in that case.
	AlreadyYours bool
}

func (c *Coordinator) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Dispatch stores a new offer and fans a notification intent out to every
// driver known at call time. Drivers registered later are not backfilled.
func (c *Coordinator) Dispatch(ctx context.Context, o models.Offer) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	c.mu.Lock()
	if err := c.Offers.Put(o); err != nil {
		c.mu.Unlock()
		if errors.Is(err, offers.ErrDuplicate) {
			return ErrDuplicateOffer
		}
		return err
	}
	o.Status = models.StatusOffered
	o.AssignedDriverID = ""
	audience := c.Directory.List()
	intents := make([]models.Intent, 0, len(audience))
	for _, d := range audience {
		c.Ledger.RecordNotified(d.ChannelID, o.ID)
		intents = append(intents, models.NotifyIntent{ChannelID: d.ChannelID, Offer: o})
	}
	c.mu.Unlock()

	observability.OffersDispatched.Inc()
	observability.PendingOffers.Set(float64(c.Offers.Len()))
	c.deliverAll(ctx, intents)
	observability.NotifyIntents.Add(float64(len(intents)))

	if c.Mirror != nil {
		if err := c.Mirror.SaveOffer(&o); err != nil {
			c.log().Error("mirror save failed", "offer_id", o.ID, "error", err)
		}
	}
	c.publish("created", o)
	c.log().Info("offer dispatched", "offer_id", o.ID, "drivers_notified", len(intents))
	return nil
}

// Accept resolves a driver's claim on an offer. Concurrent accepts on the
// same offer observe a strict total order at the compare-and-transition
// boundary; exactly one wins and the rest get ErrAlreadyTaken.
func (c *Coordinator) Accept(ctx context.Context, channelID, offerID string) (AcceptResult, error) {
	c.mu.Lock()
	o, err := c.Offers.Get(offerID)
	if err != nil {
		c.mu.Unlock()
		observability.AcceptsRejected.WithLabelValues("unknown_offer").Inc()
		return AcceptResult{}, ErrUnknownOffer
	}
	if _, ok := c.Directory.FindByChannel(channelID); !ok {
		c.mu.Unlock()
		observability.AcceptsRejected.WithLabelValues("unregistered").Inc()
		return AcceptResult{}, ErrUnregisteredDriver
	}
	if o.Status != models.StatusOffered {
		c.mu.Unlock()
		if o.AssignedDriverID == channelID {
			// Double-tap from the winner: stable success, no side effects.
			return AcceptResult{Offer: o, AlreadyYours: true}, nil
		}
		observability.AcceptConflicts.Inc()
		return AcceptResult{}, ErrAlreadyTaken
	}
	if !c.Ledger.IsNotified(channelID, offerID) {
		c.mu.Unlock()
		observability.AcceptsRejected.WithLabelValues("not_notified").Inc()
		return AcceptResult{}, ErrNotNotified
	}

	audience := c.Ledger.NotifiedOf(offerID)
	updated, err := c.Offers.CompareAndTransition(offerID, models.StatusOffered, models.StatusAssigned, channelID)
	if err != nil {
		c.mu.Unlock()
		switch {
		case errors.Is(err, offers.ErrConflict):
			observability.AcceptConflicts.Inc()
			return AcceptResult{}, ErrAlreadyTaken
		case errors.Is(err, offers.ErrNotFound):
			return AcceptResult{}, ErrUnknownOffer
		default:
			return AcceptResult{}, err
		}
	}
	c.Ledger.ClearOffer(offerID)

	intents := make([]models.Intent, 0, len(audience))
	intents = append(intents, models.DecisionIntent{Winner: channelID, Offer: updated})
	for _, other := range audience {
		if other != channelID {
			intents = append(intents, models.LostIntent{ChannelID: other, OfferID: offerID})
		}
	}
	c.mu.Unlock()

	observability.AcceptsWon.Inc()
	c.deliverAll(ctx, intents)

	if c.Mirror != nil {
		if err := c.Mirror.UpdateOfferStatus(offerID, models.StatusAssigned, channelID); err != nil {
			c.log().Error("mirror update failed", "offer_id", offerID, "error", err)
		}
	}
	if c.Payments != nil {
		if err := c.Payments.OnAssigned(ctx, updated); err != nil {
			c.log().Error("payment hold failed", "offer_id", offerID, "error", err)
		}
	}
	c.publish("assigned", updated)
	c.log().Info("offer assigned", "offer_id", offerID, "driver", channelID)
	return AcceptResult{Offer: updated}, nil
}

// Terminate completes an assigned offer. Only the assigned driver may call it
// while the offer is active.
func (c *Coordinator) Terminate(ctx context.Context, channelID, offerID string) (models.Offer, error) {
	c.mu.Lock()
	o, err := c.Offers.Get(offerID)
	if err != nil {
		c.mu.Unlock()
		return models.Offer{}, ErrUnknownOffer
	}
	if o.Status != models.StatusAssigned || o.AssignedDriverID != channelID {
		c.mu.Unlock()
		return models.Offer{}, ErrNotOwnerOrNotActive
	}
	updated, err := c.Offers.CompareAndTransition(offerID, models.StatusAssigned, models.StatusCompleted, "")
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, offers.ErrConflict) || errors.Is(err, offers.ErrNotFound) {
			return models.Offer{}, ErrNotOwnerOrNotActive
		}
		return models.Offer{}, err
	}
	// Completed offers live on only in the durable mirror.
	c.Offers.Remove(offerID)
	c.mu.Unlock()

	observability.Completions.Inc()
	observability.PendingOffers.Set(float64(c.Offers.Len()))
	c.deliverAll(ctx, []models.Intent{models.CompletionIntent{Offer: updated}})

	if c.Mirror != nil {
		if err := c.Mirror.UpdateOfferStatus(offerID, models.StatusCompleted, channelID); err != nil {
			c.log().Error("mirror update failed", "offer_id", offerID, "error", err)
		}
	}
	if c.Payments != nil {
		if err := c.Payments.OnCompleted(ctx, updated); err != nil {
			c.log().Error("payment capture failed", "offer_id", offerID, "error", err)
		}
	}
	c.publish("completed", updated)
	c.log().Info("offer completed", "offer_id", offerID, "driver", channelID)
	return updated, nil
}

func (c *Coordinator) deliverAll(ctx context.Context, intents []models.Intent) {
	for _, in := range intents {
		if err := c.Gateway.Deliver(ctx, in); err != nil {
			c.log().Error("intent delivery failed", "error", err)
		}
	}
}

func (c *Coordinator) publish(kind string, o models.Offer) {
	if c.Events == nil {
		return
	}
	if err := c.Events.PublishOfferEvent(kind, o); err != nil {
		c.log().Error("event publish failed", "kind", kind, "offer_id", o.ID, "error", err)
	}
}
