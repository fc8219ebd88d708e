package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"callsync/internal/capture"
	"callsync/internal/errs"
)

var wavArtifact = capture.EncodeWAV(make([]byte, 64), capture.Format{SampleRate: 16000, Channels: 1})

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "test", Language: "fr"})
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	})
}

func TestTranscribeRunsWhisperThenSummary(t *testing.T) {
	var gotFile, gotLang, gotUser string
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/transcriptions":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			_, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
			} else {
				gotFile = hdr.Filename
			}
			gotLang = r.FormValue("language")
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":"  bonjour, nous avons une dette URSSAF  "}`)
		case "/v1/chat/completions":
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) == 2 {
				gotUser = req.Messages[1].Content
			}
			chatReply(w, "## Coordonnées\n- ACME")
		default:
			http.NotFound(w, r)
		}
	})

	res, err := p.Transcribe(context.Background(), "abc", wavArtifact)
	if err != nil {
		t.Fatal(err)
	}
	if gotFile != "abc.wav" {
		t.Fatalf("file=%q, want abc.wav", gotFile)
	}
	if gotLang != "fr" {
		t.Fatalf("language=%q, want fr", gotLang)
	}
	if res.Transcript != "bonjour, nous avons une dette URSSAF" {
		t.Fatalf("transcript=%q", res.Transcript)
	}
	if !strings.Contains(gotUser, res.Transcript) {
		t.Fatalf("summary prompt missing transcript: %q", gotUser)
	}
	if res.Summary != "## Coordonnées\n- ACME" {
		t.Fatalf("summary=%q", res.Summary)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	p := NewOpenAI(OpenAIConfig{APIKey: "x"})
	_, err := p.Transcribe(context.Background(), "abc", capture.Artifact{})
	if !errs.Is(err, errs.KindPreconditionFailed) {
		t.Fatalf("err=%v, want precondition failed", err)
	}
}

func TestTranscribeRejectsOversizedAudio(t *testing.T) {
	called := false
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})
	big := capture.Artifact{Data: make([]byte, MaxUploadBytes+1), ContentType: "audio/wav", Ext: "wav"}
	_, err := p.Transcribe(context.Background(), "long", big)
	if !errs.Is(err, errs.KindPreconditionFailed) {
		t.Fatalf("err=%v, want precondition failed", err)
	}
	if called {
		t.Fatal("oversized audio reached the endpoint")
	}
}

func TestCompleteJSONRequestsJSONObject(t *testing.T) {
	var format string
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		format = req.ResponseFormat.Type
		chatReply(w, `{"detectedItems":["historique"]}`)
	})
	out, err := p.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatal(err)
	}
	if format != "json_object" {
		t.Fatalf("response_format=%q", format)
	}
	if out != `{"detectedItems":["historique"]}` {
		t.Fatalf("out=%q", out)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   errs.Kind
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, errs.KindRateLimited},
		{http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, errs.KindQuotaExhausted},
		{http.StatusBadGateway, `{"error":{"message":"upstream","type":"server_error"}}`, errs.KindTransientService},
		{http.StatusBadRequest, `{"error":{"message":"Invalid file format","type":"invalid_request_error"}}`, errs.KindMalformedResponse},
	}
	for _, tc := range cases {
		p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		})
		_, err := p.TranscribeText(context.Background(), wavArtifact)
		if got := errs.KindOf(err); got != tc.want {
			t.Fatalf("status %d: kind=%v, want %v (err=%v)", tc.status, got, tc.want, err)
		}
	}
}

func TestNetworkErrorsAreRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	p := NewOpenAI(OpenAIConfig{BaseURL: url, APIKey: "x"})
	_, err := p.TranscribeText(context.Background(), wavArtifact)
	if !errs.Is(err, errs.KindNetwork) || !errs.Retryable(err) {
		t.Fatalf("err=%v kind=%v, want retryable network error", err, errs.KindOf(err))
	}
}

func TestClassifyStatus(t *testing.T) {
	if k := errs.KindOf(ClassifyStatus("search", 503, "down")); k != errs.KindTransientService {
		t.Fatalf("503 kind=%v", k)
	}
	if k := errs.KindOf(ClassifyStatus("search", 401, "bad token")); k != errs.KindPreconditionFailed {
		t.Fatalf("401 kind=%v", k)
	}
	if k := errs.KindOf(ClassifyStatus("transcribe", 413, "file too large")); k != errs.KindPreconditionFailed {
		t.Fatalf("413 kind=%v", k)
	}
}
