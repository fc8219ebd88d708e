package capture

import (
	"bytes"
	"encoding/binary"
)

const (
	wavHeaderSize  = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	wavPCMFormat   = 1
)

// Format 描述采集的 PCM 流（16-bit little endian）
// Format describes the captured PCM stream (16-bit little endian)
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond is the size of one capture increment.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * bytesPerSample
}

// Artifact 一次采集组装出的音频产物；Data 为空表示没有可用音频
// Artifact is an assembled audio payload; empty Data means nothing was captured
type Artifact struct {
	Data        []byte
	ContentType string
	Ext         string
}

func (a Artifact) Empty() bool { return len(a.Data) == 0 }

func (a Artifact) Len() int { return len(a.Data) }

// EncodeWAV wraps raw PCM in a 44-byte RIFF header. Empty input yields an empty artifact.
func EncodeWAV(pcm []byte, f Format) Artifact {
	if len(pcm) == 0 {
		return Artifact{}
	}
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	blockAlign := f.Channels * bytesPerSample

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavPCMFormat))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.BytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return Artifact{Data: buf.Bytes(), ContentType: "audio/wav", Ext: "wav"}
}

// PCMData returns the payload of a WAV produced by EncodeWAV.
func PCMData(wav []byte) []byte {
	if len(wav) <= wavHeaderSize {
		return nil
	}
	return wav[wavHeaderSize:]
}
