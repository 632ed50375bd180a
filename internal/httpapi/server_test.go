package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"ocppcs/internal/models"
	"ocppcs/internal/service"
	"ocppcs/internal/ws"
)

type fakeLister struct {
	chargePoints []models.ChargePoint
	err          error
}

func (f *fakeLister) List(ctx context.Context) ([]models.ChargePoint, error) {
	return f.chargePoints, f.err
}

type fakeConnectorStore struct {
	rows map[string][]models.ConnectorStatus
	errs map[string]error
}

func (f *fakeConnectorStore) UpsertStatus(ctx context.Context, cpID string, connectorID int, status string, at time.Time) error {
	return nil
}

func (f *fakeConnectorStore) UpsertMeter(ctx context.Context, cpID string, connectorID int, meterKWH float64, at time.Time) error {
	return nil
}

func (f *fakeConnectorStore) UpsertStatusAndMeter(ctx context.Context, cpID string, connectorID int, status string, statusAt time.Time, meterKWH float64, meterAt time.Time) error {
	return nil
}

func (f *fakeConnectorStore) ListByChargePoint(ctx context.Context, cpID string) ([]models.ConnectorStatus, error) {
	if err := f.errs[cpID]; err != nil {
		return nil, err
	}
	return f.rows[cpID], nil
}

type fakeCaller struct {
	outcome ws.CallOutcome
	err     error
}

func (f *fakeCaller) Call(ctx context.Context, action string, payload interface{}) (ws.CallOutcome, error) {
	return f.outcome, f.err
}

type nopAudit struct{}

func (nopAudit) Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string) {
}

type serverFixture struct {
	lister  *fakeLister
	store   *fakeConnectorStore
	online  map[string]bool
	callers map[string]service.Caller
}

func newFixture() *serverFixture {
	return &serverFixture{
		lister:  &fakeLister{},
		store:   &fakeConnectorStore{rows: map[string][]models.ConnectorStatus{}, errs: map[string]error{}},
		online:  map[string]bool{},
		callers: map[string]service.Caller{},
	}
}

func (f *serverFixture) handler(apiKey string) http.Handler {
	logger := zap.NewNop()
	status := service.NewStatusService(f.store, nil, logger)
	commands := service.NewCommandService(func(chargePointID string) (service.Caller, bool) {
		c, ok := f.callers[chargePointID]
		return c, ok
	}, nopAudit{}, logger)
	srv := NewServer(apiKey, f.lister, status, func(id string) bool { return f.online[id] }, commands, logger)
	return srv.Routes()
}

func TestStatusRequiresAPIKey(t *testing.T) {
	handler := newFixture().handler("secret")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestHealthzIsOpen(t *testing.T) {
	handler := newFixture().handler("secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusOverview(t *testing.T) {
	f := newFixture()
	meter := 12.5
	f.lister.chargePoints = []models.ChargePoint{
		{ID: "CP1", Name: "Garage"},
		{ID: "CP2", Name: "Lobby"},
	}
	f.store.rows["CP1"] = []models.ConnectorStatus{
		{ChargePointID: "CP1", ConnectorID: 1, LastStatus: "Occupied", LastMeter: &meter},
	}
	f.online["CP1"] = true

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ChargePoints []ChargePointView `json:"chargePoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.ChargePoints) != 2 {
		t.Fatalf("expected 2 charge points, got %d", len(body.ChargePoints))
	}
	cp1 := body.ChargePoints[0]
	if cp1.ID != "CP1" || !cp1.Online {
		t.Fatalf("unexpected CP1 view: %+v", cp1)
	}
	conn, ok := cp1.Connectors["1"]
	if !ok || conn.Status != "Occupied" || conn.MeterKWH == nil || *conn.MeterKWH != 12.5 {
		t.Fatalf("unexpected connector view: %+v", conn)
	}
	if body.ChargePoints[1].Online {
		t.Fatal("CP2 should be offline")
	}
}

func TestStatusExcludesFailingChargePoint(t *testing.T) {
	f := newFixture()
	f.lister.chargePoints = []models.ChargePoint{{ID: "CP1"}, {ID: "CP2"}}
	f.store.errs["CP1"] = errors.New("relation does not exist")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		ChargePoints []ChargePointView `json:"chargePoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.ChargePoints) != 1 || body.ChargePoints[0].ID != "CP2" {
		t.Fatalf("expected only CP2 in response, got %+v", body.ChargePoints)
	}
}

func TestResetAccepted(t *testing.T) {
	f := newFixture()
	f.callers["CP1"] = &fakeCaller{outcome: ws.CallOutcome{Result: json.RawMessage(`{"status":"Accepted"}`)}}

	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/reset", strings.NewReader(`{"type":"Soft"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body commandResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != "Accepted" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestResetValidatesType(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/reset", strings.NewReader(`{"type":"Warm"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResetOfflineChargePointConflicts(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/reset", strings.NewReader(`{"type":"Soft"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for offline charge point, got %d", rec.Code)
	}
}

func TestResetTimeoutMapsToGatewayTimeout(t *testing.T) {
	f := newFixture()
	f.callers["CP1"] = &fakeCaller{err: ws.ErrCallTimeout}

	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/reset", strings.NewReader(`{"type":"Hard"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestUnlockConnector(t *testing.T) {
	f := newFixture()
	f.callers["CP1"] = &fakeCaller{outcome: ws.CallOutcome{Result: json.RawMessage(`{"status":"Unlocked"}`)}}

	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/unlock", strings.NewReader(`{"connectorId":1}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body commandResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != "Unlocked" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestUnlockValidatesConnectorID(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/chargepoints/CP1/unlock", strings.NewReader(`{"connectorId":0}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.handler("secret").ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
