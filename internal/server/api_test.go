package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aimerfeng/StarReviews/internal/config"
	apierrors "github.com/aimerfeng/StarReviews/internal/errors"
	"github.com/aimerfeng/StarReviews/internal/models"
	"github.com/aimerfeng/StarReviews/internal/review"
	"github.com/aimerfeng/StarReviews/internal/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Env: "test"},
		Storage:    config.StorageConfig{Backend: config.BackendMemory, Key: review.DefaultKey},
		Monitoring: config.MonitoringConfig{PrometheusEnabled: true},
		CORS:       config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func newTestServer(t *testing.T, kv storage.KeyValue) *APIServer {
	t.Helper()
	store := review.NewStore(kv, review.Options{
		Seeds: review.DefaultSeeds,
		Now:   func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) },
	})
	board := review.NewBoard(store)
	board.Init(context.Background())
	return NewAPIServer(testConfig(), board, kv)
}

func doJSON(srv *APIServer, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestGetReviews_Seeds(t *testing.T) {
	srv := newTestServer(t, storage.NewMemory(0))

	w := doJSON(srv, "GET", "/api/v1/reviews", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var view review.DisplayModel
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if view.Count != 2 || view.Average != 4.5 || view.AverageLabel != "4.5" {
		t.Errorf("Unexpected summary %+v", view)
	}
	if view.Reviews[0].Stars != "★★★★★" {
		t.Errorf("Unexpected stars %s", view.Reviews[0].Stars)
	}
}

func TestSubmitReview(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   apierrors.ErrorCode
		wantAuthor string
	}{
		{"numeric rating", `{"name":"Olga","rating":5,"text":"Great"}`, http.StatusCreated, "", "Olga"},
		{"string rating", `{"name":"Olga","rating":"3","text":""}`, http.StatusCreated, "", "Olga"},
		{"blank name", `{"name":"   ","rating":4,"text":"ok"}`, http.StatusCreated, "", models.DefaultAuthor},
		{"zero rating", `{"rating":0}`, http.StatusCreated, "", models.DefaultAuthor},
		{"rating too high", `{"name":"x","rating":6}`, http.StatusBadRequest, apierrors.ErrValidationFailed, ""},
		{"rating not numeric", `{"name":"x","rating":"five"}`, http.StatusBadRequest, apierrors.ErrValidationFailed, ""},
		{"rating null", `{"name":"x","rating":null}`, http.StatusBadRequest, apierrors.ErrValidationFailed, ""},
		{"rating missing", `{"name":"x"}`, http.StatusBadRequest, apierrors.ErrValidationFailed, ""},
		{"malformed json", `{"name":`, http.StatusBadRequest, apierrors.ErrInvalidJSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory(0)
			srv := newTestServer(t, kv)

			w := doJSON(srv, "POST", "/api/v1/reviews", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			if tt.wantStatus != http.StatusCreated {
				var resp apierrors.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Invalid error response: %v", err)
				}
				if resp.Error.Code != tt.wantCode {
					t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Error.Code)
				}
				if _, err := kv.Get(context.Background(), review.DefaultKey); !errors.Is(err, storage.ErrNotFound) {
					t.Error("Rejected review must not be written")
				}
				return
			}

			var view review.DisplayModel
			if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
				t.Fatalf("Invalid response: %v", err)
			}
			if view.Count != 3 {
				t.Errorf("Expected 3 reviews, got %d", view.Count)
			}
			if got := view.Reviews[2].Name; got != tt.wantAuthor {
				t.Errorf("Expected author %q, got %q", tt.wantAuthor, got)
			}
			if view.Reviews[2].Date != "01.06.2025" {
				t.Errorf("Unexpected date %s", view.Reviews[2].Date)
			}
		})
	}
}

func TestSubmitReview_UpdatesGet(t *testing.T) {
	srv := newTestServer(t, storage.NewMemory(0))

	if w := doJSON(srv, "POST", "/api/v1/reviews", `{"name":"","rating":5,"text":"Great"}`); w.Code != http.StatusCreated {
		t.Fatalf("Submit failed with %d", w.Code)
	}

	w := doJSON(srv, "GET", "/api/v1/reviews", "")
	var view review.DisplayModel
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	// (5 + 4 + 5) / 3
	if view.Count != 3 || view.AverageLabel != "4.7" {
		t.Errorf("Unexpected summary %+v", view.Summary)
	}
}

type unhealthyKV struct {
	*storage.Memory
}

func (unhealthyKV) Health(context.Context) error { return errors.New("connection refused") }

func TestHealthCheck(t *testing.T) {
	if w := doJSON(newTestServer(t, storage.NewMemory(0)), "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := doJSON(newTestServer(t, unhealthyKV{storage.NewMemory(0)}), "GET", "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := doJSON(newTestServer(t, storage.NewMemory(0)), "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	w := doJSON(newTestServer(t, storage.NewMemory(0)), "GET", "/api/v1/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}

	var resp apierrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid error response: %v", err)
	}
	if resp.Error.Code != apierrors.ErrNotFound {
		t.Errorf("Expected code %s, got %s", apierrors.ErrNotFound, resp.Error.Code)
	}
}
