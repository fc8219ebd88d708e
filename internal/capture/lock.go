package capture

import (
	"sync"

	"callsync/internal/errs"
)

// deviceLock enforces one active capture per process.
var deviceLock struct {
	mu    sync.Mutex
	owner string
}

func acquireDevice(owner string) error {
	deviceLock.mu.Lock()
	defer deviceLock.mu.Unlock()
	if deviceLock.owner != "" {
		return errs.New(errs.KindDeviceBusy, "open capture", "microphone already in use by session "+deviceLock.owner)
	}
	deviceLock.owner = owner
	return nil
}

func releaseDevice(owner string) {
	deviceLock.mu.Lock()
	defer deviceLock.mu.Unlock()
	if deviceLock.owner == owner {
		deviceLock.owner = ""
	}
}

// DeviceHolder returns the id of the session holding the microphone, or "".
func DeviceHolder() string {
	deviceLock.mu.Lock()
	defer deviceLock.mu.Unlock()
	return deviceLock.owner
}
