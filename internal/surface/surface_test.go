package surface

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsync/internal/crm"
	"callsync/internal/errs"
	"callsync/internal/i18n"
	"callsync/internal/surface/surfacetest"
)

type stubSearch struct {
	deals []crm.Deal
	err   error
	query string
}

func (s *stubSearch) Search(_ context.Context, q string) ([]crm.Deal, error) {
	s.query = q
	return s.deals, s.err
}

func TestDispatchRoutesLifecycle(t *testing.T) {
	ctrl := surfacetest.New()
	d := &Dispatcher{Ctrl: ctrl}
	ctx := context.Background()

	for _, op := range []Op{OpStart, OpPause, OpResume, OpStop} {
		resp := d.Dispatch(ctx, Command{ID: string(op), Op: op})
		require.True(t, resp.OK, "op %s: %s", op, resp.Error)
		assert.Equal(t, string(op), resp.ID)
	}
	resp := d.Dispatch(ctx, Command{Op: OpLink, DealID: 42, DealName: " Acme "})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, int64(42), resp.View.DealID)
	assert.Equal(t, "Acme", resp.View.DealName)

	resp = d.Dispatch(ctx, Command{Op: OpProcess})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "ready", resp.View.State)
	assert.Contains(t, resp.View.Summary, "Résumé")

	resp = d.Dispatch(ctx, Command{Op: OpUpload})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "uploaded", resp.View.State)
	assert.Equal(t, []string{"start", "pause", "resume", "stop", "link", "process", "upload"}, ctrl.Calls())
}

func TestDispatchReportsErrorKind(t *testing.T) {
	d := &Dispatcher{Ctrl: surfacetest.New()}
	resp := d.Dispatch(context.Background(), Command{Op: OpPause})
	require.False(t, resp.OK)
	assert.Equal(t, "invalid state", resp.Kind)
	assert.True(t, errs.Is(resp.Err(), errs.KindInvalidState))
	require.NotNil(t, resp.View)
	assert.Equal(t, "idle", resp.View.State)
}

func TestDispatchChecklistToggle(t *testing.T) {
	d := &Dispatcher{Ctrl: surfacetest.New()}
	resp := d.Dispatch(context.Background(), Command{Op: OpCheck, Item: "dette_urssaf"})
	require.True(t, resp.OK, resp.Error)
	var found bool
	for _, it := range resp.View.Checklist {
		if it.ID == "dette_urssaf" {
			found = true
			assert.True(t, it.Checked)
			assert.True(t, it.Manual)
		}
	}
	assert.True(t, found)

	resp = d.Dispatch(context.Background(), Command{Op: OpCheck, Item: "nope"})
	assert.False(t, resp.OK)
	assert.Equal(t, "precondition failed", resp.Kind)
}

func TestDispatchSearch(t *testing.T) {
	s := &stubSearch{deals: []crm.Deal{{ID: 7, Title: "Acme"}}}
	d := &Dispatcher{Ctrl: surfacetest.New(), Search: s}
	resp := d.Dispatch(context.Background(), Command{Op: OpSearch, Text: "acm"})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "acm", s.query)
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, int64(7), resp.Deals[0].ID)

	s.err = errs.New(errs.KindRateLimited, "search deals", "slow down")
	resp = d.Dispatch(context.Background(), Command{Op: OpSearch, Text: "acm"})
	assert.False(t, resp.OK)
	assert.Equal(t, "rate limited", resp.Kind)

	resp = (&Dispatcher{Ctrl: surfacetest.New()}).Dispatch(context.Background(), Command{Op: OpSearch, Text: "acm"})
	assert.False(t, resp.OK)
	assert.Equal(t, "precondition failed", resp.Kind)
}

func TestDispatchUnknownOp(t *testing.T) {
	d := &Dispatcher{Ctrl: surfacetest.New()}
	resp := d.Dispatch(context.Background(), Command{Op: "dance"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "dance")
}

func TestResponseErrOnSuccess(t *testing.T) {
	assert.NoError(t, Response{OK: true}.Err())
	err := Response{Error: "boom", Kind: "network error"}.Err()
	assert.True(t, errors.Is(err, errs.ErrNetwork))
}

func TestFormatElapsed(t *testing.T) {
	cases := map[int]string{0: "00:00", 5: "00:05", 61: "01:01", 3600: "1:00:00", 3725: "1:02:05", -3: "00:00"}
	for in, want := range cases {
		if got := FormatElapsed(in); got != want {
			t.Fatalf("FormatElapsed(%d)=%q, want %q", in, got, want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("## Coordonnées\n\n- **Acme** SARL", 80)
	require.NotEmpty(t, got)
	assert.Contains(t, got, "Coordonnées")
	assert.Contains(t, got, "Acme")
	assert.Empty(t, RenderMarkdown("  ", 80))
}

func TestRenderChecklist(t *testing.T) {
	loc := i18n.New("en")
	out := RenderChecklist(loc, []ChecklistEntry{
		{ID: "historique", Label: "Historique société", Checked: true},
		{ID: "dette_urssaf", Label: "Dette URSSAF", Checked: true, Manual: true},
		{ID: "declarations", Label: "Déclarations"},
	})
	assert.Contains(t, out, "[x] historique")
	assert.Contains(t, out, "(manual)")
	assert.Contains(t, out, "[ ] declarations")
	assert.True(t, strings.HasSuffix(out, "2/3 topics covered"))
}
