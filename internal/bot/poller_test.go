package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/example/ride-dispatch/internal/coordinator"
	"github.com/example/ride-dispatch/internal/directory"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/offers"
	"github.com/example/ride-dispatch/internal/onboarding"
	"github.com/example/ride-dispatch/internal/telegram"
)

type fakeAPI struct {
	mu    sync.Mutex
	sends map[string][]string
}

func newFakeAPI() *fakeAPI { return &fakeAPI{sends: make(map[string][]string)} }

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID, text string, buttons ...telegram.InlineButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[chatID] = append(f.sends[chatID], text)
	return nil
}

func (f *fakeAPI) AnswerCallback(ctx context.Context, callbackID, text string) error { return nil }

type nopGateway struct{}

func (nopGateway) Deliver(ctx context.Context, in models.Intent) error { return nil }

func newTestBot(driverIDs ...string) (*Bot, *coordinator.Coordinator) {
	dir := directory.NewMemory()
	for _, id := range driverIDs {
		dir.Add(models.Driver{ChannelID: id, DisplayName: "Driver " + id, PlateNumber: "XYZ-" + id})
	}
	coord := &coordinator.Coordinator{
		Directory: dir,
		Offers:    offers.NewStore(),
		Ledger:    ledger.New(),
		Gateway:   nopGateway{},
	}
	b := &Bot{
		TG:          newFakeAPI(),
		Coord:       coord,
		Wizard:      onboarding.NewWizard(dir, nil, nil),
		Ledger:      coord.Ledger,
		Offers:      coord.Offers,
		PollTimeout: 1,
	}
	return b, coord
}

func TestAcceptWithNoOpenOffers(t *testing.T) {
	b, _ := newTestBot("100")
	if got := b.accept(context.Background(), "100", ""); got != "❌ No hay ningún viaje disponible." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestBareAcceptResolvesSingleOffer(t *testing.T) {
	b, coord := newTestBot("100", "200")
	ctx := context.Background()
	if err := coord.Dispatch(ctx, models.Offer{ID: "R1", RequesterID: "u1", PriceQuote: 50}); err != nil {
		t.Fatal(err)
	}

	// winner gets no direct reply; the gateway carries the confirmation
	if got := b.accept(ctx, "100", ""); got != "" {
		t.Fatalf("expected empty reply for winner, got %q", got)
	}
	o, err := coord.Offers.Get("R1")
	if err != nil || o.AssignedDriverID != "100" {
		t.Fatalf("offer not assigned to 100: %+v %v", o, err)
	}

	// the loser is told the ride is gone
	if got := b.accept(ctx, "200", ""); got != telegram.FormatLost() {
		t.Fatalf("unexpected loser reply: %q", got)
	}
}

func TestBareAcceptWithSeveralOffersAsksForID(t *testing.T) {
	b, coord := newTestBot("100")
	ctx := context.Background()
	for _, id := range []string{"R1", "R2"} {
		if err := coord.Dispatch(ctx, models.Offer{ID: id, RequesterID: "u1"}); err != nil {
			t.Fatal(err)
		}
	}
	got := b.accept(ctx, "100", "")
	if got != "⚠️ Tienes varios viajes disponibles. Usa el botón del mensaje o /aceptar <id>." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestBareTerminateResolvesActiveOffer(t *testing.T) {
	b, coord := newTestBot("100")
	ctx := context.Background()
	if err := coord.Dispatch(ctx, models.Offer{ID: "R1", RequesterID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if got := b.terminate(ctx, "100", ""); got != "❌ No tienes viajes en curso." {
		t.Fatalf("terminate before accept: %q", got)
	}
	if _, err := coord.Accept(ctx, "100", "R1"); err != nil {
		t.Fatal(err)
	}
	if got := b.terminate(ctx, "100", ""); got != telegram.FormatCompleted() {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestUnregisteredDriverReply(t *testing.T) {
	b, coord := newTestBot("100")
	ctx := context.Background()
	if err := coord.Dispatch(ctx, models.Offer{ID: "R1", RequesterID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if got := b.accept(ctx, "999", "R1"); got != "❌ No estás registrado." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct{ in, cmd, arg string }{
		{"/aceptar", "/aceptar", ""},
		{"/aceptar R1", "/aceptar", "R1"},
		{"/aceptar@ridebot R1", "/aceptar", "R1"},
		{"  /terminar  ", "/terminar", ""},
	}
	for _, c := range cases {
		cmd, arg := splitCommand(c.in)
		if cmd != c.cmd || arg != c.arg {
			t.Fatalf("splitCommand(%q) = %q,%q", c.in, cmd, arg)
		}
	}
}
