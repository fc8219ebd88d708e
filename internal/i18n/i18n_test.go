package i18n

import "testing"

func TestNew_English(t *testing.T) {
	i := New("en")
	if i.Locale() != "en" {
		t.Fatalf("Locale()=%q, want en", i.Locale())
	}
	got := i.T("panel.checklist")
	if got != "Checklist" {
		t.Fatalf("T(panel.checklist)=%q, want Checklist", got)
	}
}

func TestNew_French(t *testing.T) {
	i := New("fr")
	if i.Locale() != "fr" {
		t.Fatalf("Locale()=%q, want fr", i.Locale())
	}
	got := i.T("state.paused")
	if got != "En pause" {
		t.Fatalf("T(state.paused)=%q, want En pause", got)
	}
}

func TestNew_FrenchFromLang(t *testing.T) {
	i := New("fr_FR.UTF-8")
	if i.Locale() != "fr" {
		t.Fatalf("Locale()=%q, want fr", i.Locale())
	}
	got := i.T("panel.summary")
	if got != "Résumé" {
		t.Fatalf("T(panel.summary)=%q, want Résumé", got)
	}
}

func TestT_WithArgs(t *testing.T) {
	i := New("en")
	got := i.T("checklist.progress", 2, 6)
	if got != "2/6 topics covered" {
		t.Fatalf("T with args=%q, want 2/6 topics covered", got)
	}
}

func TestT_MissingKey(t *testing.T) {
	i := New("en")
	got := i.T("nonexistent.key")
	if got != "nonexistent.key" {
		t.Fatalf("T missing key=%q, want key itself", got)
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	for k := range EnMessages {
		if _, ok := FrMessages[k]; !ok {
			t.Errorf("fr catalog missing %q", k)
		}
	}
	for k := range FrMessages {
		if _, ok := EnMessages[k]; !ok {
			t.Errorf("en catalog missing %q", k)
		}
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en_US.UTF-8", "en"},
		{"fr_FR.UTF-8", "fr"},
		{"fr_CA", "fr"},
		{"en", "en"},
		{"", "en"},
		{"de_DE", "de-DE"},
	}
	for _, tt := range tests {
		got := normalizeLocale(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeLocale(%q)=%q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDetectLocale(t *testing.T) {
	t.Setenv("CALLSYNC_LANG", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "fr_FR.UTF-8")
	if got := DetectLocale(); got != "fr" {
		t.Fatalf("DetectLocale()=%q, want fr", got)
	}
	t.Setenv("CALLSYNC_LANG", "en")
	if got := DetectLocale(); got != "en" {
		t.Fatalf("DetectLocale()=%q, want en", got)
	}
}

func TestGlobal(t *testing.T) {
	g := Global()
	if g == nil {
		t.Fatal("Global() should not be nil")
	}
	// 应该返回同一实例 / Should return same instance
	g2 := Global()
	if g != g2 {
		t.Fatal("Global() should return same instance")
	}
	Init("fr")
	if T("state.ready") != "Prêt" {
		t.Fatalf("T after Init(fr)=%q", T("state.ready"))
	}
	Init("en")
}

func TestSupported(t *testing.T) {
	got := Supported()
	if len(got) != 2 || got[0] != "en" || got[1] != "fr" {
		t.Fatalf("Supported()=%v, want [en fr]", got)
	}
}

func TestNew_UnknownLocaleFallsBackToEnglish(t *testing.T) {
	i := New("de_DE@euro")
	if i.Locale() != "de-DE" {
		t.Fatalf("Locale()=%q, want de-DE", i.Locale())
	}
	if got := i.T("state.ready"); got != "Ready" {
		t.Fatalf("T(state.ready)=%q, want Ready", got)
	}
}
