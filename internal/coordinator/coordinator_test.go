package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/ride-dispatch/internal/directory"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/offers"
)

// fakeGateway records every intent the coordinator emits.
type fakeGateway struct {
	mu      sync.Mutex
	intents []models.Intent
}

func (f *fakeGateway) Deliver(ctx context.Context, in models.Intent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, in)
	return nil
}

func (f *fakeGateway) count(match func(models.Intent) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, in := range f.intents {
		if match(in) {
			n++
		}
	}
	return n
}

func newTestCoordinator(driverIDs ...string) (*Coordinator, *fakeGateway) {
	dir := directory.NewMemory()
	for _, id := range driverIDs {
		dir.Add(models.Driver{ChannelID: id, DisplayName: "Driver " + id, PlateNumber: "XYZ-" + id})
	}
	gw := &fakeGateway{}
	c := &Coordinator{
		Directory: dir,
		Offers:    offers.NewStore(),
		Ledger:    ledger.New(),
		Gateway:   gw,
	}
	return c, gw
}

func testOffer(id string) models.Offer {
	return models.Offer{
		ID:          id,
		RequesterID: "u1",
		Origin:      "Centro",
		Destination: "Aeropuerto",
		Category:    "camioneta",
		PriceQuote:  50,
		DistanceKm:  12.4,
	}
}

func TestDispatchNotifiesEveryDriver(t *testing.T) {
	c, gw := newTestCoordinator("A", "B", "C")
	ctx := context.Background()

	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	for _, ch := range []string{"A", "B", "C"} {
		if !c.Ledger.IsNotified(ch, "R1") {
			t.Fatalf("driver %s not recorded as notified", ch)
		}
	}
	notifies := gw.count(func(in models.Intent) bool { _, ok := in.(models.NotifyIntent); return ok })
	if notifies != 3 {
		t.Fatalf("expected 3 notify intents, got %d", notifies)
	}
}

func TestDispatchDuplicateRejected(t *testing.T) {
	c, _ := newTestCoordinator("A")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := c.Dispatch(ctx, testOffer("R1")); !errors.Is(err, ErrDuplicateOffer) {
		t.Fatalf("expected ErrDuplicateOffer, got %v", err)
	}
}

func TestAcceptBeforeDispatchIsUnknown(t *testing.T) {
	c, _ := newTestCoordinator("A")
	if _, err := c.Accept(context.Background(), "A", "R1"); !errors.Is(err, ErrUnknownOffer) {
		t.Fatalf("expected ErrUnknownOffer, got %v", err)
	}
}

func TestAcceptUnregisteredDriver(t *testing.T) {
	c, _ := newTestCoordinator("A")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Accept(ctx, "ghost", "R1"); !errors.Is(err, ErrUnregisteredDriver) {
		t.Fatalf("expected ErrUnregisteredDriver, got %v", err)
	}
}

func TestAcceptRequiresNotification(t *testing.T) {
	c, _ := newTestCoordinator("A")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	// D registers after the dispatch snapshot; no backfill.
	c.Directory.(*directory.Memory).Add(models.Driver{ChannelID: "D", DisplayName: "Late", PlateNumber: "LATE1"})
	if _, err := c.Accept(ctx, "D", "R1"); !errors.Is(err, ErrNotNotified) {
		t.Fatalf("expected ErrNotNotified, got %v", err)
	}
}

func TestConcurrentAcceptsSingleWinner(t *testing.T) {
	drivers := []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7"}
	c, gw := newTestCoordinator(drivers...)
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	taken := 0

	for _, d := range drivers {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			<-start
			_, err := c.Accept(ctx, channel, "R1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, channel)
			case errors.Is(err, ErrAlreadyTaken):
				taken++
			default:
				t.Errorf("unexpected error for %s: %v", channel, err)
			}
		}(d)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
	if taken != len(drivers)-1 {
		t.Fatalf("expected %d AlreadyTaken, got %d", len(drivers)-1, taken)
	}
	o, err := c.Offers.Get("R1")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != models.StatusAssigned || o.AssignedDriverID != winners[0] {
		t.Fatalf("offer state %s/%s does not match winner %s", o.Status, o.AssignedDriverID, winners[0])
	}
	losts := gw.count(func(in models.Intent) bool { _, ok := in.(models.LostIntent); return ok })
	if losts != len(drivers)-1 {
		t.Fatalf("expected %d lost intents, got %d", len(drivers)-1, losts)
	}
}

func TestWinnerDoubleAcceptIsStable(t *testing.T) {
	c, gw := newTestCoordinator("A", "B")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Accept(ctx, "A", "R1"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	before := gw.count(func(models.Intent) bool { return true })

	res, err := c.Accept(ctx, "A", "R1")
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if !res.AlreadyYours {
		t.Fatal("expected AlreadyYours on repeated accept")
	}
	if after := gw.count(func(models.Intent) bool { return true }); after != before {
		t.Fatalf("repeated accept emitted intents: %d -> %d", before, after)
	}
}

func TestLedgerClearedForEveryoneAfterAccept(t *testing.T) {
	c, _ := newTestCoordinator("A", "B", "C")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Accept(ctx, "B", "R1"); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []string{"A", "B", "C"} {
		if c.Ledger.IsNotified(ch, "R1") {
			t.Fatalf("ledger entry for %s survived the accept", ch)
		}
	}
}

func TestTerminateOwnership(t *testing.T) {
	c, _ := newTestCoordinator("A", "B")
	ctx := context.Background()
	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	// not assigned yet
	if _, err := c.Terminate(ctx, "A", "R1"); !errors.Is(err, ErrNotOwnerOrNotActive) {
		t.Fatalf("expected ErrNotOwnerOrNotActive before assignment, got %v", err)
	}
	if _, err := c.Accept(ctx, "B", "R1"); err != nil {
		t.Fatal(err)
	}
	// wrong driver
	if _, err := c.Terminate(ctx, "A", "R1"); !errors.Is(err, ErrNotOwnerOrNotActive) {
		t.Fatalf("expected ErrNotOwnerOrNotActive for non-owner, got %v", err)
	}
	if _, err := c.Terminate(ctx, "B", "R1"); err != nil {
		t.Fatalf("owner terminate: %v", err)
	}
	if _, err := c.Offers.Get("R1"); !errors.Is(err, offers.ErrNotFound) {
		t.Fatalf("offer should be evicted after completion, got %v", err)
	}
}

// Full walk of the dispatch/accept/terminate protocol with three drivers.
func TestDispatchAcceptTerminateScenario(t *testing.T) {
	c, gw := newTestCoordinator("A", "B", "C")
	ctx := context.Background()

	if err := c.Dispatch(ctx, testOffer("R1")); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []string{"A", "B", "C"} {
		if !c.Ledger.IsNotified(ch, "R1") {
			t.Fatalf("%s missing notification", ch)
		}
	}

	res, err := c.Accept(ctx, "B", "R1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Offer.Status != models.StatusAssigned || res.Offer.AssignedDriverID != "B" {
		t.Fatalf("unexpected accept result: %+v", res.Offer)
	}

	if _, err := c.Accept(ctx, "A", "R1"); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("expected ErrAlreadyTaken for late accept, got %v", err)
	}
	if _, err := c.Terminate(ctx, "A", "R1"); !errors.Is(err, ErrNotOwnerOrNotActive) {
		t.Fatalf("expected ErrNotOwnerOrNotActive, got %v", err)
	}
	done, err := c.Terminate(ctx, "B", "R1")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if _, err := c.Offers.Get("R1"); !errors.Is(err, offers.ErrNotFound) {
		t.Fatal("offer still in live store after completion")
	}

	completions := gw.count(func(in models.Intent) bool { _, ok := in.(models.CompletionIntent); return ok })
	if completions != 1 {
		t.Fatalf("expected one completion intent, got %d", completions)
	}
}
