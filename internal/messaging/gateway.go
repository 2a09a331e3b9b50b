package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/telegram"
)

// ChatSender is the slice of the Telegram client the gateway needs.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID, text string, buttons ...telegram.InlineButton) error
}

// PushSender informs the requester about lifecycle edges, best-effort.
type PushSender interface {
	Notify(ctx context.Context, event string, o models.Offer) error
}

// NameResolver resolves a channel id to the driver's display name.
type NameResolver interface {
	FindByChannel(channelID string) (models.Driver, bool)
}

// Gateway turns coordinator intents into outbound messages. Offer cards try
// the driver's live WebSocket session first and fall back to Telegram;
// everything else goes straight to chat or push. Delivery failures are
// counted and surfaced but never undo coordinator state.
type Gateway struct {
	TG        ChatSender
	WS        *WSRegistry  // optional
	Push      PushSender   // optional
	Directory NameResolver // optional, for the winner greeting
	Logger    *slog.Logger // optional
}

func (g *Gateway) Deliver(ctx context.Context, in models.Intent) error {
	switch v := in.(type) {
	case models.NotifyIntent:
		return g.deliverNotify(ctx, v)
	case models.DecisionIntent:
		return g.deliverDecision(ctx, v)
	case models.LostIntent:
		return g.sendChat(ctx, v.ChannelID, telegram.FormatLost())
	case models.CompletionIntent:
		g.push(ctx, "offer_completed", v.Offer)
		return nil
	default:
		return fmt.Errorf("unknown intent type %T", in)
	}
}

func (g *Gateway) deliverNotify(ctx context.Context, in models.NotifyIntent) error {
	if g.WS != nil {
		if err := g.WS.PushOffer(in.ChannelID, in); err == nil {
			return nil
		}
	}
	card := telegram.FormatOfferCard(in.Offer)
	return g.sendChat(ctx, in.ChannelID, card,
		telegram.InlineButton{Text: "✅ Aceptar", CallbackData: "accept:" + in.Offer.ID})
}

func (g *Gateway) deliverDecision(ctx context.Context, in models.DecisionIntent) error {
	name := in.Winner
	if g.Directory != nil {
		if d, ok := g.Directory.FindByChannel(in.Winner); ok {
			name = d.DisplayName
		}
	}
	err := g.sendChat(ctx, in.Winner, telegram.FormatWon(name),
		telegram.InlineButton{Text: "🏁 Terminar viaje", CallbackData: "done:" + in.Offer.ID})
	g.push(ctx, "offer_assigned", in.Offer)
	return err
}

func (g *Gateway) sendChat(ctx context.Context, chatID, text string, buttons ...telegram.InlineButton) error {
	if err := g.TG.SendMessage(ctx, chatID, text, buttons...); err != nil {
		observability.TelegramErrors.Inc()
		return fmt.Errorf("send to %s: %w", chatID, err)
	}
	return nil
}

func (g *Gateway) push(ctx context.Context, event string, o models.Offer) {
	if g.Push == nil {
		return
	}
	if err := g.Push.Notify(ctx, event, o); err != nil && g.Logger != nil {
		g.Logger.Error("push notify failed", "event", event, "offer_id", o.ID, "error", err)
	}
}
