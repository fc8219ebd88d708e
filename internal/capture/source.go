package capture

import (
	"context"
	"io"
)

// Source 平台采集原语：Open 获取设备，Read 阻塞读取 PCM，Close 释放设备
// Source is the platform capture primitive. Open acquires the device, Read blocks for PCM, Close releases it.
//
// Open must return an *errs.Error classified as PermissionDenied, DeviceNotFound
// or DeviceBusy, and must hold no resources when it fails. Close must be safe to
// call more than once and must unblock a pending Read.
type Source interface {
	Open(ctx context.Context) error
	io.ReadCloser
	Format() Format
}
