package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	name string
	err  error
}

func (f fakePinger) Name() string               { return f.name }
func (f fakePinger) Ping(context.Context) error { return f.err }

type fakePulse struct {
	last time.Time
	errs int64
}

func (f fakePulse) LastCycle() time.Time { return f.last }
func (f fakePulse) ErrorCount() int64    { return f.errs }

func TestHealth_AllDepsUp(t *testing.T) {
	h := NewHealthHandler(nil,
		fakePinger{name: "redis"},
		fakePinger{name: "postgres"},
	)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Deps   map[string]string `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Deps["redis"])
	assert.Equal(t, "ok", body.Deps["postgres"])
}

func TestHealth_FailingDepDegrades(t *testing.T) {
	h := NewHealthHandler(nil,
		fakePinger{name: "redis"},
		fakePinger{name: "postgres", err: errors.New("connection refused")},
	)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Deps   map[string]string `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Deps["redis"])
	assert.Equal(t, "connection refused", body.Deps["postgres"])
}

func TestHealth_PulseReported(t *testing.T) {
	last := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandler(fakePulse{last: last, errs: 3})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LastCycle time.Time `json:"last_cycle"`
		Errors    int64     `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, last.Equal(body.LastCycle))
	assert.Equal(t, int64(3), body.Errors)
}

func TestHealth_NoPulseOmitsCycle(t *testing.T) {
	h := NewHealthHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_cycle")
}
