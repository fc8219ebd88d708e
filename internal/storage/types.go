package storage

import (
	"errors"
	"time"
)

// ErrNotFound 记录不存在 / ErrNotFound reports a missing call record
var ErrNotFound = errors.New("call record not found")

// Status 通话记录的持久化状态
// Status is the persisted processing state of a call record
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusUploaded   Status = "uploaded"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusUploaded, StatusFailed:
		return true
	}
	return false
}

// CallRecord 一次通话的持久化记录
// CallRecord is the persisted outcome of one recorded call
type CallRecord struct {
	ID              string   `json:"id"`
	DealID          int64    `json:"deal_id,omitempty"`
	DealName        string   `json:"deal_name,omitempty"`
	AudioPath       string   `json:"audio_path,omitempty"`
	Transcription   string   `json:"transcription,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Checklist       []string `json:"checklist"`
	DurationSeconds int      `json:"duration_seconds"`
	Status          Status   `json:"status"`
	Error           string   `json:"error,omitempty"`
	NoteID          int64    `json:"note_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// Linked reports whether the record is attached to a deal.
func (r CallRecord) Linked() bool { return r.DealID > 0 }

// CallPatch 部分更新；nil 字段保持不变
// CallPatch is a partial update; nil fields are left untouched
type CallPatch struct {
	DealID          *int64
	DealName        *string
	AudioPath       *string
	Transcription   *string
	Summary         *string
	Checklist       *[]string
	DurationSeconds *int
	Status          *Status
	Error           *string
	NoteID          *int64
}

// Apply copies the non-nil fields of p onto rec and bumps UpdatedAt.
func (p CallPatch) Apply(rec *CallRecord) {
	if p.DealID != nil {
		rec.DealID = *p.DealID
	}
	if p.DealName != nil {
		rec.DealName = *p.DealName
	}
	if p.AudioPath != nil {
		rec.AudioPath = *p.AudioPath
	}
	if p.Transcription != nil {
		rec.Transcription = *p.Transcription
	}
	if p.Summary != nil {
		rec.Summary = *p.Summary
	}
	if p.Checklist != nil {
		rec.Checklist = append([]string(nil), (*p.Checklist)...)
	}
	if p.DurationSeconds != nil {
		rec.DurationSeconds = *p.DurationSeconds
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}
	if p.NoteID != nil {
		rec.NoteID = *p.NoteID
	}
	rec.UpdatedAt = nowUTC()
}

// Columns 只包含补丁中设置的列及 updated_at，用于按列部分更新
// Columns returns only the columns p sets, keyed by column name, plus updated_at.
// A field set to its zero value is still present so it can be cleared.
func (p CallPatch) Columns() map[string]any {
	m := map[string]any{"updated_at": nowUTC()}
	if p.DealID != nil {
		m["deal_id"] = *p.DealID
	}
	if p.DealName != nil {
		m["deal_name"] = *p.DealName
	}
	if p.AudioPath != nil {
		m["audio_path"] = *p.AudioPath
	}
	if p.Transcription != nil {
		m["transcription"] = *p.Transcription
	}
	if p.Summary != nil {
		m["summary"] = *p.Summary
	}
	if p.Checklist != nil {
		ids := append([]string{}, (*p.Checklist)...)
		m["checklist"] = ids
	}
	if p.DurationSeconds != nil {
		m["duration_seconds"] = *p.DurationSeconds
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.Error != nil {
		m["error"] = *p.Error
	}
	if p.NoteID != nil {
		m["note_id"] = *p.NoteID
	}
	return m
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T { return &v }

// TimeLayout 固定宽度时间戳，字典序即时间序
// TimeLayout is fixed-width so lexical order matches time order
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func nowUTC() string {
	return time.Now().UTC().Format(TimeLayout)
}
