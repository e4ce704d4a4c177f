package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/pkg/types/common"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("v1.2.3", CheckFunc{"broken", func(context.Context) error { return fmt.Errorf("down") }})
	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.HealthUp, resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := CheckFunc{"engine", func(context.Context) error { return nil }}
	bad := CheckFunc{"cache", func(context.Context) error { return fmt.Errorf("closed") }}

	tests := []struct {
		name     string
		checkers []HealthChecker
		code     int
		status   common.HealthStatus
	}{
		{"no checkers", nil, http.StatusOK, common.HealthUp},
		{"all healthy", []HealthChecker{ok}, http.StatusOK, common.HealthUp},
		{"one failing", []HealthChecker{ok, bad}, http.StatusServiceUnavailable, common.HealthDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("dev", tt.checkers...)
			w := httptest.NewRecorder()
			h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			require.Len(t, resp.Components, len(tt.checkers))
			for i, c := range tt.checkers {
				assert.Equal(t, c.Name(), resp.Components[i].Name)
			}
		})
	}
}
