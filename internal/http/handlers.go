package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/coordinator"
	"github.com/example/ride-dispatch/internal/dedupe"
	"github.com/example/ride-dispatch/internal/messaging"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/telegram"
)

// Server is the HTTP ingress: the offer-created webhook, health probes,
// metrics and the driver WebSocket attach point.
type Server struct {
	logger *slog.Logger
	coord  *coordinator.Coordinator
	guard  dedupe.Guard
	wsReg  *messaging.WSRegistry
	mux    *mux.Router
}

func New(logger *slog.Logger, coord *coordinator.Coordinator, guard dedupe.Guard, wsReg *messaging.WSRegistry) *Server {
	s := &Server{logger: logger, coord: coord, guard: guard, wsReg: wsReg, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Bot is running"))
	}).Methods("GET")
	s.mux.HandleFunc("/api/v1/offers", s.handleOfferCreated).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{channel_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// offerPayload is the ride-created webhook body. Field names follow the
// upstream app's payload; price and distance arrive as strings or numbers
// depending on the producer, hence flexFloat.
type offerPayload struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Phone       string    `json:"phone"`
	StartPoint  string    `json:"startPoint"`
	EndPoint    string    `json:"endPoint"`
	Weight      string    `json:"weight"`
	Type        string    `json:"type"`
	Indications string    `json:"indications"`
	Price       flexFloat `json:"price"`
	Distance    flexFloat `json:"distance"`
	Stops       []string  `json:"stops"`
}

// flexFloat accepts both `50` and `"50"`.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (s *Server) handleOfferCreated(w http.ResponseWriter, r *http.Request) {
	var p offerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	// Required-field validation happens here so malformed payloads never
	// reach the coordinator.
	if strings.TrimSpace(p.StartPoint) == "" || strings.TrimSpace(p.EndPoint) == "" ||
		strings.TrimSpace(p.Type) == "" || p.Price <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Datos del viaje incompletos"})
		return
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	if s.guard != nil {
		first, err := s.guard.FirstSeen(r.Context(), id)
		if err != nil {
			s.logger.Error("dedupe check failed", "offer_id", id, "error", err)
		} else if !first {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "offer_id": id, "duplicate": true})
			return
		}
	}

	offer := models.Offer{
		ID:          id,
		RequesterID: p.UserID,
		Phone:       p.Phone,
		Origin:      p.StartPoint,
		Destination: p.EndPoint,
		Weight:      p.Weight,
		Category:    p.Type,
		Indications: p.Indications,
		PriceQuote:  float64(p.Price),
		DistanceKm:  float64(p.Distance),
		CreatedAt:   time.Now(),
	}
	for _, raw := range p.Stops {
		offer.Stops = append(offer.Stops, telegram.ParseStop(raw))
	}

	if err := s.coord.Dispatch(r.Context(), offer); err != nil {
		if errors.Is(err, coordinator.ErrDuplicateOffer) {
			writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "offer already dispatched"})
			return
		}
		s.logger.Error("dispatch failed", "offer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "dispatch failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "offer_id": id})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["channel_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.wsReg.Add(id, conn)
	go func() {
		// drain until the peer goes away, then drop the session
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.wsReg.Remove(id)
				_ = conn.Close()
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
