package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/identity"
)

func serveFleet(t *testing.T, totalItems int, pageSize int) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		start := (page - 1) * pageSize
		end := start + pageSize
		if end > totalItems {
			end = totalItems
		}

		items := make([]fleet.VehicleLiveState, 0, pageSize)
		for id := start + 1; id <= end; id++ {
			items = append(items, fleet.VehicleLiveState{
				VehicleID:   int64(id),
				PlateNumber: "V-" + strconv.Itoa(id),
				Status:      fleet.VehicleStatusActive,
			})
		}

		json.NewEncoder(w).Encode(fleet.PagedResult[fleet.VehicleLiveState]{
			Items:      items,
			TotalItems: totalItems,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: (totalItems + pageSize - 1) / pageSize,
		})
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func TestFetchCollectsEveryPage(t *testing.T) {
	server, requests := serveFleet(t, 25, 10)

	loader := &Loader{
		URL:         server.URL,
		PageSize:    10,
		MaxAttempts: 1,
		Tokens:      &identity.StaticTokenSource{AccessToken: "test-token"},
	}

	states, err := loader.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(states) != 25 {
		t.Errorf("expected 25 vehicles, got %d", len(states))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}

	seen := map[int64]bool{}
	for _, state := range states {
		if seen[state.VehicleID] {
			t.Errorf("vehicle %d fetched twice", state.VehicleID)
		}
		seen[state.VehicleID] = true
	}
}

func TestFetchSinglePage(t *testing.T) {
	server, requests := serveFleet(t, 4, 10)

	loader := &Loader{
		URL:         server.URL,
		PageSize:    10,
		MaxAttempts: 1,
		Tokens:      &identity.StaticTokenSource{AccessToken: "test-token"},
	}

	states, err := loader.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(states) != 4 {
		t.Errorf("expected 4 vehicles, got %d", len(states))
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestFetchRetriesFirstPage(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		json.NewEncoder(w).Encode(fleet.PagedResult[fleet.VehicleLiveState]{
			Items:      []fleet.VehicleLiveState{{VehicleID: 1, PlateNumber: "V-1"}},
			TotalItems: 1,
			Page:       1,
			PageSize:   10,
			TotalPages: 1,
		})
	}))
	t.Cleanup(server.Close)

	loader := &Loader{URL: server.URL, PageSize: 10, MaxAttempts: 4}

	states, err := loader.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 {
		t.Errorf("expected 1 vehicle, got %d", len(states))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	loader := &Loader{URL: server.URL, MaxAttempts: 2, Timeout: 30 * time.Second}

	if _, err := loader.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestFetchRejectsMissingToken(t *testing.T) {
	server, _ := serveFleet(t, 5, 10)

	loader := &Loader{
		URL:         server.URL,
		MaxAttempts: 1,
		Tokens:      &identity.StaticTokenSource{},
	}

	if _, err := loader.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error when no token is available")
	}
}
