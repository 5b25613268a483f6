// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	result CheckResult
}

func (s stubChecker) Name() string                      { return s.name }
func (s stubChecker) Check(context.Context) CheckResult { return s.result }

func TestManager_HealthAlways200(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(stubChecker{"broken", CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)

	// Verbose surfaces component state but liveness stays 200.
	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))
	require.Equal(t, 200, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_ReadyStates(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantReady  bool
		wantStatus Status
	}{
		{
			name:       "no checkers is ready",
			wantReady:  true,
			wantStatus: StatusHealthy,
		},
		{
			name:       "all healthy",
			checkers:   []Checker{stubChecker{"a", CheckResult{Status: StatusHealthy}}},
			wantReady:  true,
			wantStatus: StatusHealthy,
		},
		{
			name: "degraded stays ready",
			checkers: []Checker{
				stubChecker{"a", CheckResult{Status: StatusHealthy}},
				stubChecker{"b", CheckResult{Status: StatusDegraded}},
			},
			wantReady:  true,
			wantStatus: StatusDegraded,
		},
		{
			name:       "unhealthy not ready",
			checkers:   []Checker{stubChecker{"a", CheckResult{Status: StatusUnhealthy}}},
			wantReady:  false,
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}

			resp := m.Ready(context.Background())
			require.Equal(t, tt.wantReady, resp.Ready)
			require.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestManager_ServeReady503(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(stubChecker{"corpus", CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 503, rec.Code)
}

func TestCorpusChecker(t *testing.T) {
	c := NewCorpusChecker(func() (int, time.Time, bool) { return 0, time.Time{}, false })
	require.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	c = NewCorpusChecker(func() (int, time.Time, bool) { return 0, time.Now(), true })
	require.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = NewCorpusChecker(func() (int, time.Time, bool) { return 12, time.Now(), true })
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestPolicyCheckerDegradesOnly(t *testing.T) {
	c := NewPolicyChecker(func() error { return errors.New("terms: unreadable") })
	res := c.Check(context.Background())
	require.Equal(t, StatusDegraded, res.Status)
	require.Contains(t, res.Error, "unreadable")

	c = NewPolicyChecker(func() error { return nil })
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestRefreshChecker(t *testing.T) {
	c := NewRefreshChecker(func() (time.Time, string) { return time.Time{}, "" }, 0)
	require.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	c = NewRefreshChecker(func() (time.Time, string) { return time.Now(), "scan failed" }, 0)
	require.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = NewRefreshChecker(func() (time.Time, string) { return time.Now().Add(-2 * time.Hour), "" }, time.Hour)
	require.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = NewRefreshChecker(func() (time.Time, string) { return time.Now(), "" }, time.Hour)
	require.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}
