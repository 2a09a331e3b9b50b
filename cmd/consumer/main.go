package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_consumed_total",
		Help: "Total offer events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_invalid_total",
		Help: "Total invalid events received",
	})
	mirrorWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_mirror_writes_total",
		Help: "Total successful mirror writes",
	})
	mirrorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_mirror_errors_total",
		Help: "Total mirror write errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, mirrorWrites, mirrorErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "offer-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "ride-dispatch-audit"
	}

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		log.Fatal("PG_DSN is required for the audit mirror")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	sink := &pgSink{db: db}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "postgres not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = db.Close()
	}()

	log.Printf("audit consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		eventsConsumed.Inc()

		var ev models.OfferEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Offer.ID == "" {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}

		if err := writeWithRetry(ctx, sink, ev, 3, 200*time.Millisecond); err != nil {
			mirrorErrors.Inc()
			log.Printf("mirror write failed for offer=%s: %v", ev.Offer.ID, err)
			continue
		}
		mirrorWrites.Inc()
	}
}

// OfferSink defines the small subset of mirror operations we need for tests
// and production.
type OfferSink interface {
	UpsertOffer(ctx context.Context, ev models.OfferEvent) error
}

type pgSink struct{ db *sql.DB }

func (p *pgSink) UpsertOffer(ctx context.Context, ev models.OfferEvent) error {
	o := ev.Offer
	stops, _ := json.Marshal(o.Stops)
	_, err := p.db.ExecContext(ctx, `INSERT INTO offers(id, requester_id, phone, origin, destination, weight, category, indications, price_quote, distance_km, stops, status, assigned_driver_id, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, assigned_driver_id=EXCLUDED.assigned_driver_id, updated_at=EXCLUDED.updated_at`,
		o.ID, o.RequesterID, o.Phone, o.Origin, o.Destination, o.Weight, o.Category, o.Indications,
		o.PriceQuote, o.DistanceKm, stops, o.Status.String(), o.AssignedDriverID, o.CreatedAt, ev.At)
	return err
}

// writeWithRetry upserts into the mirror with retry/backoff.
func writeWithRetry(ctx context.Context, sink OfferSink, ev models.OfferEvent, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := sink.UpsertOffer(ctx, ev); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}
