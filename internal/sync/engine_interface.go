// Package sync reconciles the remote booking list with the local record store.
package sync

import (
	"context"
	"time"
)

// BookingSyncer defines the merge engine operations used by the scheduler and
// the console. This interface allows for mocking in tests.
type BookingSyncer interface {
	// MergeAndLoad merges the remote list into the local cache and returns the
	// merged, sorted view. It never fails; remote faults degrade the result.
	MergeAndLoad(ctx context.Context) *MergeResult

	// SetEventHandler sets the handler receiving sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the completion time of the last non-degraded merge.
	LastSync() *time.Time

	// LastError returns the remote error of the last merge, if it degraded.
	LastError() error
}
