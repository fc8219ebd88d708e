package main

// version 由构建时 -ldflags 覆盖 / version is overridden at build time with -ldflags
var version = "1.0.0"

const (
	surfaceAuto   = "auto"
	surfaceTUI    = "tui"
	surfaceREPL   = "repl"
	surfaceDaemon = "daemon"

	historyFile     = "repl.history"
	databaseFile    = "calls.db"
	blobDir         = "recordings"
	defaultListSize = 20
)
