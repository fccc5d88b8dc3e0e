package database

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"parcelbridge/config"
	"parcelbridge/shipping"

	_ "github.com/go-sql-driver/mysql"
)

type Store struct {
	DB *sql.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "db connection failed")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "db ping failed")
	}

	store := &Store{DB: db}
	if err := store.ensureTables(); err != nil {
		return nil, err
	}

	log.Println("Connected to MySQL")
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) ensureTables() error {
	if err := s.ensureLabelRecordsTable(); err != nil {
		return err
	}
	return s.ensureTrackingNumbersTable()
}

func (s *Store) ensureLabelRecordsTable() error {
	_, err := s.DB.Exec(`
		CREATE TABLE IF NOT EXISTS label_records (
			id VARCHAR(64) PRIMARY KEY,
			provider VARCHAR(32) NOT NULL,
			shipment_id VARCHAR(64) NOT NULL,
			tracking_number VARCHAR(64) NOT NULL,
			rate_id VARCHAR(255) NOT NULL DEFAULT '',
			carrier VARCHAR(64) NOT NULL DEFAULT '',
			service_code VARCHAR(64) NOT NULL DEFAULT '',
			service_name VARCHAR(255) NOT NULL DEFAULT '',
			cost DECIMAL(12,2) NOT NULL DEFAULT 0,
			currency VARCHAR(8) NOT NULL DEFAULT '',
			label_url TEXT,
			label_format VARCHAR(8) NOT NULL DEFAULT '',
			cancelled_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			KEY idx_tracking_number (tracking_number)
		)
	`)
	return err
}

func (s *Store) ensureTrackingNumbersTable() error {
	_, err := s.DB.Exec(`
		CREATE TABLE IF NOT EXISTS tracking_numbers (
			shipment_id VARCHAR(64) PRIMARY KEY,
			provider VARCHAR(32) NOT NULL,
			tracking_number VARCHAR(64) NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`)
	return err
}

// LabelRecord is the persisted form of a purchased label.
type LabelRecord struct {
	ID             string          `json:"id"`
	Provider       string          `json:"provider"`
	ShipmentID     string          `json:"shipment_id"`
	TrackingNumber string          `json:"tracking_number"`
	RateID         string          `json:"rate_id"`
	Carrier        string          `json:"carrier"`
	Service        string          `json:"service"`
	ServiceName    string          `json:"service_name"`
	Cost           decimal.Decimal `json:"cost"`
	Currency       string          `json:"currency"`
	LabelURL       string          `json:"label_url"`
	LabelFormat    string          `json:"label_format"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RecordLabel persists a purchased label and its tracking number.
func (s *Store) RecordLabel(ctx context.Context, label shipping.Label) error {
	recordID := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO label_records
			(id, provider, shipment_id, tracking_number, rate_id, carrier,
			 service_code, service_name, cost, currency, label_url, label_format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		recordID,
		label.Provider,
		label.ID,
		label.TrackingNumber,
		label.Rate.ID,
		label.Rate.Carrier,
		label.Rate.Service,
		label.Rate.ServiceName,
		label.Rate.Cost.StringFixed(2),
		label.Rate.Currency,
		label.LabelURL,
		string(label.LabelFormat),
	)
	if err != nil {
		return errors.Wrap(err, "insert label record")
	}

	if label.TrackingNumber != "" {
		if err := s.SaveTrackingNumber(ctx, label.ID, label.Provider, label.TrackingNumber); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveTrackingNumber(ctx context.Context, shipmentID, provider, trackingNumber string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tracking_numbers (shipment_id, provider, tracking_number)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE tracking_number = VALUES(tracking_number)
	`, shipmentID, provider, trackingNumber)
	return errors.Wrap(err, "save tracking number")
}

func (s *Store) LoadTrackingNumber(ctx context.Context, shipmentID string) (string, string, error) {
	var provider, trackingNumber string
	err := s.DB.QueryRowContext(ctx, `
		SELECT provider, tracking_number
		FROM tracking_numbers
		WHERE shipment_id = ?
	`, shipmentID).Scan(&provider, &trackingNumber)
	if err == sql.ErrNoRows {
		return "", "", &shipping.NotFoundError{Resource: "tracking number", Selector: shipmentID}
	}
	if err != nil {
		return "", "", errors.Wrap(err, "load tracking number")
	}
	return provider, trackingNumber, nil
}

func (s *Store) LabelByTrackingNumber(ctx context.Context, trackingNumber string) (*LabelRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, provider, shipment_id, tracking_number, rate_id, carrier,
		       service_code, service_name, cost, currency, label_url,
		       label_format, cancelled_at, created_at
		FROM label_records
		WHERE tracking_number = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, trackingNumber)
	return scanLabelRecord(row, trackingNumber)
}

func (s *Store) LabelByShipmentID(ctx context.Context, shipmentID string) (*LabelRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, provider, shipment_id, tracking_number, rate_id, carrier,
		       service_code, service_name, cost, currency, label_url,
		       label_format, cancelled_at, created_at
		FROM label_records
		WHERE shipment_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, shipmentID)
	return scanLabelRecord(row, shipmentID)
}

// MarkLabelCancelled is best-effort bookkeeping after a refund; an unknown
// shipment id is not an error.
func (s *Store) MarkLabelCancelled(ctx context.Context, shipmentID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE label_records
		SET cancelled_at = CURRENT_TIMESTAMP
		WHERE shipment_id = ? AND cancelled_at IS NULL
	`, shipmentID)
	return errors.Wrap(err, "mark label cancelled")
}

func scanLabelRecord(row *sql.Row, selector string) (*LabelRecord, error) {
	var record LabelRecord
	var cost string
	var cancelledAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.Provider,
		&record.ShipmentID,
		&record.TrackingNumber,
		&record.RateID,
		&record.Carrier,
		&record.Service,
		&record.ServiceName,
		&cost,
		&record.Currency,
		&record.LabelURL,
		&record.LabelFormat,
		&cancelledAt,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &shipping.NotFoundError{Resource: "label record", Selector: selector}
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan label record")
	}

	record.Cost, err = decimal.NewFromString(cost)
	if err != nil {
		return nil, errors.Wrapf(err, "label record %s has unparseable cost %q", record.ID, cost)
	}
	if cancelledAt.Valid {
		record.CancelledAt = &cancelledAt.Time
	}
	return &record, nil
}
