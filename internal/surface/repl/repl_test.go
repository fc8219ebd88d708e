package repl

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsync/internal/crm"
	"callsync/internal/i18n"
	"callsync/internal/surface"
	"callsync/internal/surface/surfacetest"
)

type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type fixedSearch []crm.Deal

func (f fixedSearch) Search(context.Context, string) ([]crm.Deal, error) { return f, nil }

func runScript(t *testing.T, ctrl *surfacetest.Controller, search crm.Searcher, script string) string {
	t.Helper()
	out := &safeBuffer{}
	d := &surface.Dispatcher{Ctrl: ctrl, Search: search}
	r := New(d, NewBasicLineInput(strings.NewReader(script), nil), out, i18n.New("en"))
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPLFullFlow(t *testing.T) {
	ctrl := surfacetest.New()
	search := fixedSearch{{ID: 9, Title: "Cession", Organization: "Acme"}}
	out := runScript(t, ctrl, search, strings.Join([]string{
		"/start",
		"/check historique",
		"/stop",
		"/search acme",
		"/pick 1",
		"/process",
		"/upload",
		"",
	}, "\n"))

	assert.Equal(t, []string{"start", "check", "stop", "link", "process", "upload"}, ctrl.Calls())
	assert.Contains(t, out, "-> Recording")
	assert.Contains(t, out, "[x] historique")
	assert.Contains(t, out, "1. Cession (Acme)  #9")
	assert.Contains(t, out, "Linked to Cession (Acme)")
	assert.Contains(t, out, "Résumé")
	assert.Contains(t, out, "Note attached to Cession (Acme)")
	assert.Contains(t, out, "bye")
}

func TestREPLReportsErrors(t *testing.T) {
	ctrl := surfacetest.New()
	out := runScript(t, ctrl, nil, "/pause\n/process\n")
	assert.Contains(t, out, "Error: pause: not allowed while idle")
	assert.Contains(t, out, "Error: process: not allowed while idle")
}

func TestREPLUsageMessages(t *testing.T) {
	out := runScript(t, surfacetest.New(), fixedSearch{}, strings.Join([]string{
		"/link",
		"/link abc",
		"/check",
		"/search",
		"/pick 3",
		"hello",
		"/dance",
		"/search zz",
	}, "\n"))
	assert.Contains(t, out, "usage: /link")
	assert.Contains(t, out, "usage: /check")
	assert.Contains(t, out, "usage: /search")
	assert.Contains(t, out, "usage: /pick")
	assert.Contains(t, out, "unknown command: hello")
	assert.Contains(t, out, "unknown command: /dance")
	assert.Contains(t, out, "No matching deal")
}

func TestREPLQuitStopsReading(t *testing.T) {
	ctrl := surfacetest.New()
	runScript(t, ctrl, nil, "/quit\n/start\n")
	assert.Empty(t, ctrl.Calls())
}

func TestREPLLinkByIDAndSummaryEdit(t *testing.T) {
	ctrl := surfacetest.New()
	out := runScript(t, ctrl, nil, strings.Join([]string{
		"/start",
		"/link 77 Dossier Martin",
		"/stop",
		"/process",
		"/summary Nouveau résumé corrigé",
		"/summary",
		"/status",
	}, "\n"))
	v := ctrl.View()
	assert.Equal(t, int64(77), v.DealID)
	assert.Equal(t, "Dossier Martin", v.DealName)
	assert.Equal(t, "Nouveau résumé corrigé", v.Summary)
	assert.Contains(t, out, "Summary saved")
	assert.Contains(t, out, "Deal: Dossier Martin")
	assert.Contains(t, out, "0/6 topics covered")
}

func TestREPLBannerAndFrench(t *testing.T) {
	out := &safeBuffer{}
	d := &surface.Dispatcher{Ctrl: surfacetest.New()}
	r := New(d, NewBasicLineInput(strings.NewReader("/status\n"), nil), out, i18n.New("fr"))
	r.SetBanner("Mise à jour disponible : 1.2.0")
	require.NoError(t, r.Run(context.Background()))
	s := out.String()
	assert.Contains(t, s, "callsync prêt")
	assert.Contains(t, s, "! Mise à jour disponible : 1.2.0")
	assert.Contains(t, s, "Inactif")
	assert.Contains(t, s, "Aucune affaire liée")
}
