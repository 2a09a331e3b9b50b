package onboarding

import (
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

const (
	minNameLen  = 2
	minPlateLen = 4
)

type step int

const (
	askingName step = iota
	askingPlate
)

// Registrar receives a fully validated driver.
type Registrar interface {
	Add(d models.Driver)
}

// Mirror persists the driver record, best-effort.
type Mirror interface {
	SaveDriver(d *models.Driver) error
}

type session struct {
	step step
	name string
}

// Wizard runs the two-step registration conversation: full name, then plate.
// One session per chat; sessions live only in memory.
type Wizard struct {
	mu       sync.Mutex
	sessions map[string]*session

	Registrar Registrar
	Mirror    Mirror       // optional
	Logger    *slog.Logger // optional
}

func NewWizard(reg Registrar, mirror Mirror, logger *slog.Logger) *Wizard {
	return &Wizard{sessions: make(map[string]*session), Registrar: reg, Mirror: mirror, Logger: logger}
}

// Start opens (or restarts) a registration session and returns the greeting.
func (w *Wizard) Start(channelID string) string {
	w.mu.Lock()
	w.sessions[channelID] = &session{step: askingName}
	w.mu.Unlock()
	return "🚗 ¡Bienvenido conductor! Por favor, envía tu nombre completo:"
}

// Active reports whether the chat has a registration in progress.
func (w *Wizard) Active(channelID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[channelID]
	return ok
}

// Input feeds one message into the session and returns the reply. done is
// true once the driver has been registered.
func (w *Wizard) Input(channelID, text string) (reply string, done bool) {
	w.mu.Lock()
	s, ok := w.sessions[channelID]
	if !ok {
		w.mu.Unlock()
		return "", false
	}

	switch s.step {
	case askingName:
		if len([]rune(text)) < minNameLen {
			w.mu.Unlock()
			return "❌ Nombre muy corto", false
		}
		s.name = text
		s.step = askingPlate
		w.mu.Unlock()
		return "✅ Ahora escribe la placa de tu vehículo:", false

	case askingPlate:
		if len([]rune(text)) < minPlateLen {
			w.mu.Unlock()
			return "❌ Placa inválida", false
		}
		delete(w.sessions, channelID)
		w.mu.Unlock()

		d := models.Driver{
			ChannelID:    channelID,
			DisplayName:  s.name,
			PlateNumber:  text,
			RegisteredAt: time.Now(),
		}
		w.Registrar.Add(d)
		if w.Mirror != nil {
			if err := w.Mirror.SaveDriver(&d); err != nil && w.Logger != nil {
				w.Logger.Error("driver mirror save failed", "channel_id", channelID, "error", err)
			}
		}
		return "🎉 Registro completo. Gracias, " + s.name + ".", true
	}
	w.mu.Unlock()
	return "", false
}
