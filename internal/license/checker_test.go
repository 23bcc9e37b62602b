package license

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"facebridge/server/internal/notify"
)

func newChecker(t *testing.T, handler http.HandlerFunc) (*Checker, *notify.Notifier) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	log := zap.NewNop().Sugar()
	n := notify.New(log, 16)
	return NewChecker(log, n, ts.URL, "TEST-123", time.Second), n
}

func TestCheckValidLicense(t *testing.T) {
	c, _ := newChecker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/validate", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TEST-123", body["key"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "License valid",
		})
	})

	msg, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "License valid", msg)
}

func TestCheckRejectedLicense(t *testing.T) {
	c, _ := newChecker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "License expired",
		})
	})

	_, err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "License expired")
}

func TestCheckHTTPError(t *testing.T) {
	c, _ := newChecker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error")
}

func TestCheckNetworkError(t *testing.T) {
	log := zap.NewNop().Sugar()
	c := NewChecker(log, notify.New(log, 4), "http://127.0.0.1:1", "k", time.Second)

	_, err := c.Check(context.Background())
	assert.Error(t, err)
}

func TestCheckAndNotifyEmitsResult(t *testing.T) {
	c, n := newChecker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "License valid",
		})
	})

	c.checkAndNotify(context.Background())

	select {
	case ev := <-n.Events():
		assert.Equal(t, notify.EventLicenseStatus, ev.Name)
		assert.Equal(t, "License valid", ev.Payload)
	default:
		t.Fatal("expected a license-status event")
	}
}
