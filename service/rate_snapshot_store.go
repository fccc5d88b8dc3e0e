package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"parcelbridge/config"
	"parcelbridge/shipping"
)

// RateSnapshot is the purchasable view of a quoted rate, kept just long
// enough for a label purchase. A snapshot that is gone means the quote
// expired.
type RateSnapshot struct {
	Rate     shipping.Rate        `json:"rate"`
	Request  shipping.RateRequest `json:"request"`
	QuotedAt time.Time            `json:"quoted_at"`
}

type RateSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRateSnapshotStore returns nil when no redis address is configured;
// snapshotting is optional.
func NewRateSnapshotStore(cfg config.RedisConfig) *RateSnapshotStore {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil
	}

	ttl := time.Duration(cfg.RateSessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RateSnapshotStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(cfg.Password),
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func (s *RateSnapshotStore) Save(ctx context.Context, snapshot RateSnapshot) error {
	if s == nil || s.client == nil {
		return errors.New("rate snapshot store not configured")
	}
	if strings.TrimSpace(snapshot.Rate.ID) == "" {
		return errors.New("rate snapshot missing rate id")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snapshot.Rate.ID), payload, s.ttl).Err()
}

func (s *RateSnapshotStore) Load(ctx context.Context, rateID string) (RateSnapshot, error) {
	if s == nil || s.client == nil {
		return RateSnapshot{}, errors.New("rate snapshot store not configured")
	}
	rateID = strings.TrimSpace(rateID)
	if rateID == "" {
		return RateSnapshot{}, errors.New("rate snapshot missing rate id")
	}

	payload, err := s.client.Get(ctx, s.key(rateID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RateSnapshot{}, &shipping.NotFoundError{Resource: "rate snapshot", Selector: rateID}
		}
		return RateSnapshot{}, err
	}

	var snapshot RateSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return RateSnapshot{}, err
	}
	return snapshot, nil
}

func (s *RateSnapshotStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RateSnapshotStore) key(rateID string) string {
	return fmt.Sprintf("rate:%s", strings.TrimSpace(rateID))
}

func logSnapshotStoreError(rateID string, err error) {
	if err == nil {
		return
	}
	log.Printf("failed to store rate snapshot %s: %v\n", rateID, err)
}
