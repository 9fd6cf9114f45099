package tuner

// Worker limits. Every entry costs one stat call, so the walk is bound on
// metadata latency rather than CPU and runs more workers than cores.
const (
	maxWorkers     = 64
	minWorkers     = 4
	workersPerCore = 2
)

// Record preallocation limits.
const (
	// bytesPerRecord estimates the in-memory size of one record.
	bytesPerRecord = 256

	// recordMemoryFraction is the share of available RAM used for preallocation.
	recordMemoryFraction = 0.01

	minRecordCapacity = 1024
	maxRecordCapacity = 1 << 20
)

// OptimalConfig is the tuned collector configuration.
type OptimalConfig struct {
	// Workers is the fastwalk worker count.
	Workers int

	// RecordCapacity is the initial capacity of the record slice.
	RecordCapacity int
}

// Calculate returns the tuned configuration for the given resources.
func Calculate(resources SystemResources) OptimalConfig {
	workers := resources.CPUCores * workersPerCore
	workers = max(workers, minWorkers)
	workers = min(workers, maxWorkers)

	return OptimalConfig{
		Workers:        workers,
		RecordCapacity: calculateRecordCapacity(resources.AvailableRAM),
	}
}

// CalculateWithOverrides applies a user worker override to Calculate's result.
// An override of zero or less keeps the calculated value; larger values are
// capped at maxWorkers.
func CalculateWithOverrides(resources SystemResources, workerOverride int) OptimalConfig {
	cfg := Calculate(resources)
	if workerOverride > 0 {
		cfg.Workers = min(workerOverride, maxWorkers)
	}
	return cfg
}

func calculateRecordCapacity(availableRAM int64) int {
	budget := float64(availableRAM) * recordMemoryFraction
	entries := int(budget / bytesPerRecord)

	entries = max(entries, minRecordCapacity)
	entries = min(entries, maxRecordCapacity)
	return entries
}
