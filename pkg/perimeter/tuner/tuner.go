// Package tuner detects CPU and memory and derives the collector's worker
// count and record preallocation from them.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available RAM in bytes. It may be an estimate.
	AvailableRAM int64
}
