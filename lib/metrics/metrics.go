package metrics

import (
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

var (
	LockAcquired  = vm.NewCounter(`memento_lock_acquired_total`)
	LockBusy      = vm.NewCounter(`memento_lock_busy_total`)
	LockRetries   = vm.NewCounter(`memento_lock_retries_total`)
	LockReclaimed = vm.NewCounter(`memento_lock_reclaimed_total`)
	LockReleased  = vm.NewCounter(`memento_lock_released_total`)

	InventoryWrites  = vm.NewCounter(`memento_inventory_writes_total`)
	InventoryDeletes = vm.NewCounter(`memento_inventory_deletes_total`)
	WriteFailures    = vm.NewCounter(`memento_inventory_write_failures_total`)

	BlobsWritten     = vm.NewCounter(`memento_blobs_written_total`)
	BlobBytesWritten = vm.NewCounter(`memento_blob_bytes_written_total`)
	BlobsDeleted     = vm.NewCounter(`memento_blobs_deleted_total`)

	CorruptRecovered = vm.NewCounter(`memento_corrupt_state_recovered_total`)

	lockWait = vm.NewHistogram(`memento_lock_wait_seconds`)
)

// ObserveLockWait records how long an acquisition took, including retries.
func ObserveLockWait(start time.Time) {
	lockWait.UpdateDuration(start)
}

// WritePrometheus writes all memento metrics in Prometheus text format to w.
func WritePrometheus(w io.Writer) {
	vm.WritePrometheus(w, false)
}
