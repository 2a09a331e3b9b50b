package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
)

type PostgresMirror struct {
	db *sql.DB
}

func NewPostgresMirror(dsn string) (*PostgresMirror, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresMirror{db: db}, nil
}

func (p *PostgresMirror) SaveOffer(o *models.Offer) error {
	stops, _ := json.Marshal(o.Stops)
	_, err := p.db.Exec(`INSERT INTO offers(id, requester_id, phone, origin, destination, weight, category, indications, price_quote, distance_km, stops, status, assigned_driver_id, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.RequesterID, o.Phone, o.Origin, o.Destination, o.Weight, o.Category, o.Indications,
		o.PriceQuote, o.DistanceKm, stops, o.Status.String(), o.AssignedDriverID, o.CreatedAt, time.Now())
	return err
}

func (p *PostgresMirror) UpdateOfferStatus(id string, status models.OfferStatus, driverID string) error {
	_, err := p.db.Exec(`UPDATE offers SET status=$1, assigned_driver_id=COALESCE(NULLIF($2,''), assigned_driver_id), updated_at=$3 WHERE id=$4`,
		status.String(), driverID, time.Now(), id)
	return err
}

func (p *PostgresMirror) SaveDriver(d *models.Driver) error {
	_, err := p.db.Exec(`INSERT INTO drivers(channel_id, display_name, plate_number, registered_at)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (channel_id) DO UPDATE SET display_name=EXCLUDED.display_name, plate_number=EXCLUDED.plate_number`,
		d.ChannelID, d.DisplayName, d.PlateNumber, d.RegisteredAt)
	return err
}

func (p *PostgresMirror) ListDrivers() ([]models.Driver, error) {
	rows, err := p.db.Query(`SELECT channel_id, display_name, plate_number, registered_at FROM drivers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ChannelID, &d.DisplayName, &d.PlateNumber, &d.RegisteredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresMirror) Close() error { return p.db.Close() }
