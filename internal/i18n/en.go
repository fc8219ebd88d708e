package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Session states
	"state.idle":       "Idle",
	"state.recording":  "Recording",
	"state.paused":     "Paused",
	"state.stopped":    "Stopped",
	"state.processing": "Processing",
	"state.ready":      "Ready",
	"state.uploading":  "Uploading",
	"state.uploaded":   "Uploaded",
	"state.failed":     "Failed",

	// UI (TUI) - Panel titles
	"panel.checklist":  "Checklist",
	"panel.summary":    "Summary",
	"panel.transcript": "Transcript",
	"panel.search":     "Deal search",

	// Deal link
	"deal.none":   "No deal linked",
	"deal.linked": "Deal: %s",

	// Search
	"search.placeholder": "Search deals (2 characters minimum)",
	"search.empty":       "No matching deal",
	"search.failed":      "Search failed: %s",
	"search.linked":      "Linked to %s",

	// Summary
	"summary.empty":     "No summary yet",
	"summary.edit_hint": "ctrl+s save · esc cancel",
	"summary.saved":     "Summary saved",

	// Checklist
	"checklist.progress": "%d/%d topics covered",
	"checklist.manual":   "manual",

	// Status messages
	"status.processing":  "Transcribing and summarizing...",
	"status.uploading":   "Attaching note...",
	"status.uploaded":    "Note attached to %s",
	"status.ready":       "Ready. Review the summary, then upload",
	"status.fallback":    "Remote settings unavailable, using local defaults",
	"status.update":      "Update available: %s %s",
	"status.audio_saved": "Audio kept (%d bytes). Retry processing when ready",

	// Errors
	"error.prefix": "Error: %s",

	// Keybindings (TUI)
	"keys.help":        "r record · p pause/resume · s stop · x process · u upload · / search · e edit · n new · q quit",
	"keys.search_help": "↑/↓ select · enter link · esc close",

	// REPL
	"repl.welcome":      "callsync ready. Type /help for commands.",
	"repl.unknown":      "unknown command: %s",
	"repl.usage_link":   "usage: /link <deal_id> [name] or /pick <n>",
	"repl.usage_check":  "usage: /check <item_id>",
	"repl.usage_search": "usage: /search <text>",
	"repl.usage_pick":   "usage: /pick <n> (after /search)",
	"repl.bye":          "bye",
}
