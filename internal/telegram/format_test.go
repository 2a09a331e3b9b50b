package telegram

import (
	"math"
	"strings"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func TestDriverEarningsFormula(t *testing.T) {
	// (50 - 5.28) * 0.7 = 31.304
	if got := DriverEarnings(50); math.Abs(got-31.304) > 1e-9 {
		t.Fatalf("unexpected earnings: %f", got)
	}
}

func TestFormatOfferCard(t *testing.T) {
	o := models.Offer{
		ID:          "R1",
		RequesterID: "u42",
		Phone:       "+52 722 555 0101",
		Origin:      "Centro",
		Destination: "Aeropuerto",
		Weight:      "20kg",
		Category:    "camioneta",
		PriceQuote:  50,
		DistanceKm:  12.4,
		Stops:       []models.Stop{{Address: "Av. Juárez 10", Note: "portón negro"}},
	}
	card := FormatOfferCard(o)

	for _, want := range []string{
		"Nuevo viaje disponible",
		"🛣️ De: Centro",
		"🏁 A: Aeropuerto",
		"💵 Ganancia: $31.30",
		"1. 📍 Dirección: Av. Juárez 10",
		"✏️ Indicaciones: portón negro",
		"https://wa.me/527225550101",
		"/aceptar",
		"/terminar",
	} {
		if !strings.Contains(card, want) {
			t.Fatalf("card missing %q:\n%s", want, card)
		}
	}
}

func TestFormatCardWithoutPhone(t *testing.T) {
	card := FormatOfferCard(models.Offer{RequesterID: "u1", Origin: "A", Destination: "B"})
	if !strings.Contains(card, "📞 Teléfono: No disponible") {
		t.Fatalf("expected phone fallback:\n%s", card)
	}
	if strings.Contains(card, "wa.me/\n") {
		t.Fatal("phone link should be omitted when there is no phone")
	}
}

func TestFormatStopsEmpty(t *testing.T) {
	if got := FormatStops(nil); got != "Ninguna" {
		t.Fatalf("expected Ninguna, got %q", got)
	}
}

func TestParseStop(t *testing.T) {
	s := ParseStop("Av. Juárez 10 || tocar el timbre")
	if s.Address != "Av. Juárez 10" || s.Note != "tocar el timbre" {
		t.Fatalf("unexpected stop: %+v", s)
	}
	s = ParseStop("Sin nota")
	if s.Address != "Sin nota" || s.Note != "" {
		t.Fatalf("unexpected stop: %+v", s)
	}
}
