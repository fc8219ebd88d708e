package capture

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	f := Format{SampleRate: 16000, Channels: 1}
	pcm := make([]byte, 320)
	art := EncodeWAV(pcm, f)
	if art.Len() != wavHeaderSize+len(pcm) {
		t.Fatalf("len=%d, want %d", art.Len(), wavHeaderSize+len(pcm))
	}
	if string(art.Data[0:4]) != "RIFF" || string(art.Data[8:12]) != "WAVE" || string(art.Data[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", art.Data[:44])
	}
	if got := binary.LittleEndian.Uint32(art.Data[28:32]); got != 32000 {
		t.Fatalf("byte rate=%d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(art.Data[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size=%d, want %d", got, len(pcm))
	}
	if art.ContentType != "audio/wav" || art.Ext != "wav" {
		t.Fatalf("content type=%q ext=%q", art.ContentType, art.Ext)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if !EncodeWAV(nil, Format{SampleRate: 16000, Channels: 1}).Empty() {
		t.Fatalf("empty pcm must give empty artifact")
	}
}

func TestClassifyDeviceError(t *testing.T) {
	cases := map[string]string{
		"[pulse] pa_context_connect() failed: Access denied":        "permission denied",
		"default: Device or resource busy":                          "device busy",
		"[alsa] cannot open audio device hw:1 (No such file or dir)": "device not found",
	}
	for msg, want := range cases {
		if got := ClassifyDeviceError(msg).String(); got != want {
			t.Fatalf("ClassifyDeviceError(%q)=%q, want %q", msg, got, want)
		}
	}
}
