package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/ride-dispatch/internal/coordinator"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/offers"
	"github.com/example/ride-dispatch/internal/onboarding"
	"github.com/example/ride-dispatch/internal/telegram"
)

// API is the slice of the Telegram client the poller drives.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text string, buttons ...telegram.InlineButton) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Bot long-polls Telegram and maps chat commands and inline-button callbacks
// onto the coordinator's two driver operations. Buttons and text commands are
// deliberately equivalent: both land on Accept/Terminate.
type Bot struct {
	TG          API
	Coord       *coordinator.Coordinator
	Wizard      *onboarding.Wizard
	Ledger      *ledger.Ledger
	Offers      *offers.Store
	PollTimeout int
	Logger      *slog.Logger
}

func (b *Bot) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Run polls until the context is cancelled, backing off on transport errors.
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		updates, err := b.TG.GetUpdates(ctx, offset, b.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.log().Info("bot poller shutting down")
				return
			}
			b.log().Error("getUpdates failed", "error", err, "backoff", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	channelID := strconv.FormatInt(m.Chat.ID, 10)
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	cmd, arg := splitCommand(text)

	switch cmd {
	case "/start":
		b.reply(ctx, channelID, b.Wizard.Start(channelID))
	case "/aceptar":
		b.reply(ctx, channelID, b.accept(ctx, channelID, arg))
	case "/terminar":
		b.reply(ctx, channelID, b.terminate(ctx, channelID, arg))
	default:
		if b.Wizard.Active(channelID) {
			if reply, _ := b.Wizard.Input(channelID, text); reply != "" {
				b.reply(ctx, channelID, reply)
			}
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	channelID := strconv.FormatInt(cb.Message.Chat.ID, 10)

	var toast string
	switch {
	case strings.HasPrefix(cb.Data, "accept:"):
		toast = b.accept(ctx, channelID, strings.TrimPrefix(cb.Data, "accept:"))
	case strings.HasPrefix(cb.Data, "done:"):
		toast = b.terminate(ctx, channelID, strings.TrimPrefix(cb.Data, "done:"))
	default:
		return
	}
	if err := b.TG.AnswerCallback(ctx, cb.ID, toast); err != nil {
		b.log().Error("answerCallback failed", "error", err)
	}
}

// accept resolves the target offer and runs the coordinator operation,
// returning the user-facing reply. A bare /aceptar works when the driver has
// exactly one open offer, matching the single-pending behavior drivers are
// used to.
func (b *Bot) accept(ctx context.Context, channelID, offerID string) string {
	if offerID == "" {
		open := b.Ledger.OffersFor(channelID)
		switch len(open) {
		case 0:
			return "❌ No hay ningún viaje disponible."
		case 1:
			offerID = open[0]
		default:
			return "⚠️ Tienes varios viajes disponibles. Usa el botón del mensaje o /aceptar <id>."
		}
	}

	res, err := b.Coord.Accept(ctx, channelID, offerID)
	switch {
	case err == nil && res.AlreadyYours:
		return "✅ Este viaje ya es tuyo."
	case err == nil:
		// The gateway delivers the confirmation via the decision intent.
		return ""
	case errors.Is(err, coordinator.ErrAlreadyTaken):
		return telegram.FormatLost()
	case errors.Is(err, coordinator.ErrUnregisteredDriver):
		return "❌ No estás registrado."
	case errors.Is(err, coordinator.ErrUnknownOffer), errors.Is(err, coordinator.ErrNotNotified):
		return "❌ No hay ningún viaje disponible."
	default:
		b.log().Error("accept failed", "offer_id", offerID, "error", err)
		return "❌ Error al aceptar el viaje. Intenta otra vez."
	}
}

func (b *Bot) terminate(ctx context.Context, channelID, offerID string) string {
	if offerID == "" {
		active, ok := b.Offers.AssignedTo(channelID)
		if !ok {
			return "❌ No tienes viajes en curso."
		}
		offerID = active.ID
	}

	_, err := b.Coord.Terminate(ctx, channelID, offerID)
	switch {
	case err == nil:
		return telegram.FormatCompleted()
	case errors.Is(err, coordinator.ErrUnknownOffer), errors.Is(err, coordinator.ErrNotOwnerOrNotActive):
		return "❌ No tienes viajes en curso."
	default:
		b.log().Error("terminate failed", "offer_id", offerID, "error", err)
		return "❌ Error al completar el viaje."
	}
}

func (b *Bot) reply(ctx context.Context, channelID, text string) {
	if text == "" {
		return
	}
	if err := b.TG.SendMessage(ctx, channelID, text); err != nil {
		b.log().Error("reply failed", "channel_id", channelID, "error", err)
	}
}

func splitCommand(text string) (cmd, arg string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	// strip the @botname suffix Telegram appends in groups
	cmd = strings.SplitN(fields[0], "@", 2)[0]
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg
}
