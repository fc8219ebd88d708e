package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsync/internal/config"
	"callsync/internal/errs"
)

func newTestPipedrive(t *testing.T, handler http.HandlerFunc) *Pipedrive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPipedrive(config.CRMConfig{BaseURL: srv.URL, APIToken: "tok", SearchLimit: 10}, nil, nil)
}

func TestSearchMapsDeals(t *testing.T) {
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deals/search", r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("term"))
		assert.Equal(t, "tok", r.URL.Query().Get("api_token"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"items":[
			{"item":{"id":7,"title":"Acme renewal","value":1200,"currency":"EUR","status":"open",
			 "organization":{"name":"Acme"},"person":{"name":"Jane"}}},
			{"item":{"id":8,"title":"Solo","organization":null,"person":null}}]}}`)
	})

	deals, err := p.Search(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, Deal{ID: 7, Title: "Acme renewal", Organization: "Acme", Person: "Jane", Value: 1200, Currency: "EUR", Status: "open"}, deals[0])
	assert.Equal(t, "Acme renewal (Acme)", deals[0].Label())
	assert.Equal(t, "Solo", deals[1].Label())
}

func TestSearchShortQuerySkipsRequest(t *testing.T) {
	var hits atomic.Int32
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	deals, err := p.Search(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, deals)
	assert.Zero(t, hits.Load())
}

func TestSearchClassifiesHTTPErrors(t *testing.T) {
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"success":false,"error":"slow down"}`)
	})
	_, err := p.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
}

func TestSearchWithoutToken(t *testing.T) {
	p := NewPipedrive(config.CRMConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	_, err := p.Search(context.Background(), "acme")
	assert.True(t, errs.Is(err, errs.KindPreconditionFailed))
}

func TestAddNotePinsToDeal(t *testing.T) {
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notes", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(42), body["deal_id"])
		assert.Equal(t, "summary text", body["content"])
		assert.Equal(t, true, body["pinned_to_deal_flag"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":991}}`)
	})

	id, err := p.AddNote(context.Background(), 42, "summary text")
	require.NoError(t, err)
	assert.Equal(t, int64(991), id)
}

func TestAddNoteRequiresDealAndContent(t *testing.T) {
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := p.AddNote(context.Background(), 0, "x")
	assert.True(t, errs.Is(err, errs.KindPreconditionFailed))
	_, err = p.AddNote(context.Background(), 1, "  ")
	assert.True(t, errs.Is(err, errs.KindPreconditionFailed))
}

func TestAddNoteServerError(t *testing.T) {
	p := newTestPipedrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := p.AddNote(context.Background(), 1, "x")
	require.Error(t, err)
	assert.True(t, errs.Retryable(err))
}
