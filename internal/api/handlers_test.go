// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/models"
)

// envelope mirrors models.APIResponse with undecoded data.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type testServer struct {
	coord   *round.Coordinator
	store   *storage.BadgerStore
	handler http.Handler
}

func newTestServer(t *testing.T, mw *ChiMiddleware, ready ...ReadinessFunc) *testServer {
	t.Helper()

	store, err := storage.Open(storage.Options{InMemory: true})
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewTestLogger(io.Discard)
	seeder := federated.NewSeeder(0.01, 7)
	agg := aggregation.NewAggregator(store, privacy.NewMechanism(7), seeder, logger)
	gh := growth.NewHandler(training.NewTrainer(logger), seeder, logger)
	coord := round.NewCoordinator(round.Config{Dim: 2}, store, agg, gh, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Collector().Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = coord.Shutdown()
	})

	h := NewHandler(coord, "test", ready...)
	return &testServer{coord: coord, store: store, handler: NewRouter(h, mw).SetupChi()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func (s *testServer) initialize(t *testing.T) {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/model", models.InitializeModelRequest{Titles: []string{"A", "B", "C"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initialize status = %d, want 201 (%v)", rec.Code, env.Error)
	}
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK || env.Status != models.StatusSuccess {
		t.Fatalf("live = %d %q, want 200 success", rec.Code, env.Status)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}
	var health models.HealthStatus
	decodeData(t, env, &health)
	if health.ModelReady || health.Status != "uninitialized" {
		t.Errorf("ready before init = %+v, want uninitialized", health)
	}

	s.initialize(t)
	_, env = s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	decodeData(t, env, &health)
	if !health.ModelReady || health.ModelVersion != 1 {
		t.Errorf("ready after init = %+v, want model ready at version 1", health)
	}
}

func TestHealthReady_FailingCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, func(context.Context) error { return errors.New("delta collector not running") })

	rec, env := s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v, want SERVICE_UNAVAILABLE", env.Error)
	}
}

func TestModelLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodGet, "/api/v1/model", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("GET before init = %d %+v, want 404 NOT_FOUND", rec.Code, env.Error)
	}

	s.initialize(t)

	rec, env = s.do(t, http.MethodPost, "/api/v1/model", models.InitializeModelRequest{Titles: []string{"X"}})
	if rec.Code != http.StatusConflict || env.Error.Code != ErrCodeModelExists {
		t.Errorf("second init = %d %+v, want 409 MODEL_EXISTS", rec.Code, env.Error)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/model", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var model models.ModelResponse
	decodeData(t, env, &model)
	if model.Vocabulary.Len() != 3 || model.Items.Dim != 2 || model.Items.Len() != 3 {
		t.Errorf("model = %d titles, dim %d, %d rows, want 3/2/3", model.Vocabulary.Len(), model.Items.Dim, model.Items.Len())
	}
	if env.Metadata.ModelVersion != model.Version {
		t.Errorf("metadata version = %d, want %d", env.Metadata.ModelVersion, model.Version)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/model", models.InitializeModelRequest{Titles: []string{"X", "Y"}, Force: true})
	if rec.Code != http.StatusCreated {
		t.Errorf("forced init = %d, want 201", rec.Code)
	}
	_, env = s.do(t, http.MethodGet, "/api/v1/model", nil)
	decodeData(t, env, &model)
	if model.Vocabulary.Len() != 2 {
		t.Errorf("after forced init vocabulary = %v, want [X Y]", model.Vocabulary.Titles())
	}
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.initialize(t)

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode string
	}{
		{"malformed json", "/api/v1/items", "{", ErrCodeInvalidRequest},
		{"empty titles", "/api/v1/model", models.InitializeModelRequest{}, ErrCodeValidation},
		{"blank item", "/api/v1/items", models.RegisterItemRequest{Title: "  "}, ErrCodeValidation},
		{"interaction without delta", "/api/v1/interactions", "{}", ErrCodeValidation},
		{"interaction bad dimension", "/api/v1/interactions", models.InteractionRequest{Delta: federated.Delta{0: {1}}}, ErrCodeDimensionMismatch},
		{"interaction negative id", "/api/v1/interactions", models.InteractionRequest{Delta: federated.Delta{-1: {1, 1}}}, ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestRegisterItem(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.initialize(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/items", models.RegisterItemRequest{Title: "Dune"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp models.RegisterItemResponse
	decodeData(t, env, &resp)
	if !resp.Added || resp.ItemID != 3 || resp.Version != 2 {
		t.Errorf("response = %+v, want added id 3 at version 2", resp)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/items", models.RegisterItemRequest{Title: " dune "})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat status = %d, want 200", rec.Code)
	}
	decodeData(t, env, &resp)
	if resp.Added || resp.ItemID != 3 || resp.Version != 2 {
		t.Errorf("repeat response = %+v, want existing id 3 at version 2", resp)
	}
}

func TestRoundOverHTTP(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, nil)
	s.initialize(t)

	before, err := s.store.LoadModel(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/rounds", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, want 201", rec.Code)
	}
	var rnd round.Round
	decodeData(t, env, &rnd)
	if rnd.ID == "" || rnd.BaseVersion != before.Version {
		t.Fatalf("round = %+v, want id and base version %d", rnd, before.Version)
	}

	submit := models.SubmitDeltaRequest{ParticipantID: "alice", Delta: federated.Delta{0: {0.5, -0.25}}}
	rec, env = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/deltas", submit)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202 (%+v)", rec.Code, env.Error)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/deltas",
		models.SubmitDeltaRequest{ParticipantID: "bob", Delta: federated.Delta{0: {1, 2, 3}}})
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeDimensionMismatch {
		t.Errorf("bad submit = %d %+v, want 400 DIMENSION_MISMATCH", rec.Code, env.Error)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/rounds", nil)
	var open []round.Round
	decodeData(t, env, &open)
	if len(open) != 1 || open[0].Submissions != 1 {
		t.Errorf("open rounds = %+v, want one round with one submission", open)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d, want 200 (%+v)", rec.Code, env.Error)
	}
	var result round.Result
	decodeData(t, env, &result)
	if result.Summary.Participants != 1 || result.Version != before.Version+1 {
		t.Errorf("result = %+v, want 1 participant at version %d", result, before.Version+1)
	}

	after, err := s.store.LoadModel(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	want := federated.Vector{before.Items.Rows[0][0] + 0.5, before.Items.Rows[0][1] - 0.25}
	for j := range want {
		if math.Abs(after.Items.Rows[0][j]-want[j]) > 1e-12 {
			t.Errorf("row 0 = %v, want %v", after.Items.Rows[0], want)
			break
		}
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/close", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeRoundNotOpen {
		t.Errorf("second close = %d %+v, want 404 ROUND_NOT_OPEN", rec.Code, env.Error)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/deltas", submit)
	if rec.Code != http.StatusNotFound {
		t.Errorf("submit after close = %d, want 404", rec.Code)
	}
}

func TestOpenRound_Uninitialized(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	rec, env := s.do(t, http.MethodPost, "/api/v1/rounds", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("open = %d %+v, want 404 NOT_FOUND", rec.Code, env.Error)
	}
}

func TestApplyInteraction(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.initialize(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/interactions", models.InteractionRequest{Delta: federated.Delta{1: {0.1, 0}}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%+v)", rec.Code, env.Error)
	}
	var resp models.AggregationResponse
	decodeData(t, env, &resp)
	if resp.Version != 2 || resp.Summary.ItemsUpdated != 1 {
		t.Errorf("response = %+v, want version 2 with one item updated", resp)
	}
}

func TestDeltaIDsBeyondGrowthLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, nil)
	s.initialize(t)

	huge := federated.Delta{3 + round.DefaultMaxGrowth: {0.1, 0.1}}
	rec, env := s.do(t, http.MethodPost, "/api/v1/interactions", models.InteractionRequest{Delta: huge})
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("interaction = %d %+v, want 400 INVALID_REQUEST", rec.Code, env.Error)
	}

	_, env = s.do(t, http.MethodPost, "/api/v1/rounds", nil)
	var rnd round.Round
	decodeData(t, env, &rnd)
	rec, env = s.do(t, http.MethodPost, "/api/v1/rounds/"+rnd.ID+"/deltas",
		models.SubmitDeltaRequest{ParticipantID: "alice", Delta: huge})
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("submit = %d %+v, want 400 INVALID_REQUEST", rec.Code, env.Error)
	}

	snap, err := s.store.LoadModel(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if snap.Items.Len() != 3 || snap.Version != 1 {
		t.Errorf("model = %d rows at version %d, want 3 rows at version 1", snap.Items.Len(), snap.Version)
	}

	// The last id inside the limit still grows the matrix.
	edge := federated.Delta{2 + round.DefaultMaxGrowth: {0.1, 0.1}}
	rec, env = s.do(t, http.MethodPost, "/api/v1/interactions", models.InteractionRequest{Delta: edge})
	if rec.Code != http.StatusOK {
		t.Fatalf("edge interaction = %d %+v, want 200", rec.Code, env.Error)
	}
	snap, err = s.store.LoadModel(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if want := 3 + round.DefaultMaxGrowth; snap.Items.Len() != want {
		t.Errorf("rows = %d, want %d", snap.Items.Len(), want)
	}
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{federated.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{round.ErrRoundNotOpen, http.StatusNotFound, ErrCodeRoundNotOpen},
		{aggregation.ErrModelExists, http.StatusConflict, ErrCodeModelExists},
		{&federated.DimensionError{Op: "x", Want: 2, Got: 3}, http.StatusBadRequest, ErrCodeDimensionMismatch},
		{federated.ErrInvalidID, http.StatusBadRequest, ErrCodeInvalidRequest},
		{round.ErrBusClosed, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		status, code := statusForError(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("statusForError(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()

	if got := sanitizeLogValue("round\nforged"); got != `round\x0aforged` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
