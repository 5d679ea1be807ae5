package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/protocol"
	"github.com/saker-ai/spiritio-client/internal/router"
)

type staticStatus router.Status

func (s staticStatus) Status() router.Status { return router.Status(s) }

type staticGuests []protocol.Guest

func (g staticGuests) Guests() []protocol.Guest { return g }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	engine := NewRouter(staticStatus{}, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestSessionStatus(t *testing.T) {
	engine := NewRouter(staticStatus{
		SessionID:    "s-1",
		Room:         "7",
		Channel:      router.ChannelOpen,
		Media:        "connected",
		Participants: 3,
	}, nil, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["session_id"] != "s-1" || body["room"] != "7" || body["channel"] != "open" || body["participants"] != float64(3) {
		t.Fatalf("body=%v", body)
	}
}

func TestParticipants(t *testing.T) {
	engine := NewRouter(staticStatus{}, staticGuests{{ID: "1", Name: "bob"}}, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/participants", nil))

	var body struct {
		Count        int `json:"count"`
		Participants []struct {
			Name string `json:"name"`
		} `json:"participants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || body.Participants[0].Name != "bob" {
		t.Fatalf("body=%+v", body)
	}
}
