package livestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connector is the live view of one connector, served to the status API
// without touching the relational store.
type Connector struct {
	Status        string    `json:"status"`
	ChargeRateKW  *float64  `json:"chargeRateKW,omitempty"`
	MeterKWH      *float64  `json:"meterKWH,omitempty"`
	StateOfCharge *int      `json:"stateOfCharge,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store caches live connector state in redis with a TTL, so stale entries of
// long-disconnected devices age out on their own.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a redis-backed live status store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(chargePointID string, connectorID int) string {
	return fmt.Sprintf("ocpp:live:%s:%d", chargePointID, connectorID)
}

// Set stores the live state of one connector.
func (s *Store) Set(ctx context.Context, chargePointID string, connectorID int, c Connector) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(chargePointID, connectorID), data, s.ttl).Err()
}

// Merge reads the current entry, applies non-nil fields from update, and
// writes the result back. Used by meter updates that must not clobber the
// connector's reported status.
func (s *Store) Merge(ctx context.Context, chargePointID string, connectorID int, update Connector) error {
	current, err := s.get(ctx, chargePointID, connectorID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &Connector{}
	}
	if update.Status != "" {
		current.Status = update.Status
	}
	if update.ChargeRateKW != nil {
		current.ChargeRateKW = update.ChargeRateKW
	}
	if update.MeterKWH != nil {
		current.MeterKWH = update.MeterKWH
	}
	if update.StateOfCharge != nil {
		current.StateOfCharge = update.StateOfCharge
	}
	current.UpdatedAt = update.UpdatedAt
	return s.Set(ctx, chargePointID, connectorID, *current)
}

func (s *Store) get(ctx context.Context, chargePointID string, connectorID int) (*Connector, error) {
	result, err := s.client.Get(ctx, s.key(chargePointID, connectorID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var c Connector
	if err := json.Unmarshal([]byte(result), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns the live state of all cached connectors of one charge point.
func (s *Store) List(ctx context.Context, chargePointID string) (map[int]Connector, error) {
	pattern := fmt.Sprintf("ocpp:live:%s:*", chargePointID)
	prefix := fmt.Sprintf("ocpp:live:%s:", chargePointID)

	result := make(map[int]Connector)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		connectorID, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil {
			continue
		}
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		var c Connector
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		result[connectorID] = c
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
