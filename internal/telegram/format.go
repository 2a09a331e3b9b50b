package telegram

import (
	"fmt"
	"strings"

	"github.com/example/ride-dispatch/internal/models"
)

// Fixed payout formula carried over from the product: a flat platform fee is
// subtracted from the quote and the driver keeps 70% of the remainder.
const (
	platformFee = 5.28
	driverShare = 0.7
)

const adminContactLink = "[https://wa.me/527223711236](https://wa.me/527223711236)"

// DriverEarnings applies the fixed payout formula to a price quote.
func DriverEarnings(priceQuote float64) float64 {
	return (priceQuote - platformFee) * driverShare
}

// FormatOfferCard renders the offer announcement sent to every driver.
func FormatOfferCard(o models.Offer) string {
	var b strings.Builder
	b.WriteString("🆕 *Nuevo viaje disponible*:\n\n")
	fmt.Fprintf(&b, "🧍 Usuario ID: %s\n", o.RequesterID)
	fmt.Fprintf(&b, "📞 Teléfono: %s\n", orDefault(o.Phone, "No disponible"))
	fmt.Fprintf(&b, "🛣️ De: %s\n", o.Origin)
	fmt.Fprintf(&b, "🏁 A: %s\n", o.Destination)
	fmt.Fprintf(&b, "📦 Peso: %s\n", o.Weight)
	fmt.Fprintf(&b, "🚚 Tipo: %s\n", o.Category)
	fmt.Fprintf(&b, "💬 Indicaciones punto final: %s\n", orDefault(o.Indications, "Ninguna"))
	fmt.Fprintf(&b, "📏 Distancia: %g km\n", o.DistanceKm)
	fmt.Fprintf(&b, "💵 Ganancia: $%.2f\n", DriverEarnings(o.PriceQuote))
	b.WriteString("\n🛑 Paradas:\n")
	b.WriteString(FormatStops(o.Stops))
	b.WriteString("\n\n")
	if link := phoneLink(o.Phone); link != "" {
		fmt.Fprintf(&b, "[📨 Enviar verificación de entrega](%s)\n", link)
	}
	fmt.Fprintf(&b, "[📦 Comprobación de entrega para pago](%s)\n\n", adminContactLink)
	b.WriteString("Responde con /aceptar para tomar este viaje.\n")
	b.WriteString("Al finalizar el viaje, responde con /terminar.")
	return b.String()
}

// FormatStops renders the ordered waypoint list, one numbered entry per stop.
func FormatStops(stops []models.Stop) string {
	if len(stops) == 0 {
		return "Ninguna"
	}
	lines := make([]string, 0, len(stops))
	for i, s := range stops {
		lines = append(lines, fmt.Sprintf("%d. 📍 Dirección: %s\n   ✏️ Indicaciones: %s",
			i+1, s.Address, orDefault(s.Note, "Ninguna")))
	}
	return strings.Join(lines, "\n")
}

// ParseStop splits the ingress "address||note" stop encoding.
func ParseStop(raw string) models.Stop {
	parts := strings.SplitN(raw, "||", 2)
	s := models.Stop{Address: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		s.Note = strings.TrimSpace(parts[1])
	}
	return s
}

func FormatWon(driverName string) string {
	return fmt.Sprintf("✅ ¡Has aceptado el viaje! Gracias, %s.", driverName)
}

func FormatLost() string {
	return "❌ El viaje ya fue tomado."
}

func FormatCompleted() string {
	return "✅ Has marcado el viaje como completado. ¡Gracias!"
}

func phoneLink(phone string) string {
	if phone == "" {
		return ""
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
