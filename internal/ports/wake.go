package ports

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

// WakeFunc is invoked synchronously from inside the engine when a fault
// monitor's threshold is crossed, either on the raw value during ingestion
// or during the fault-monitor phase.
//
// Implementations must return quickly, must not block, and must not call
// back into the engine: the callback runs mid-tick and a recursive tick
// would corrupt the signal table. Set flags or trip hardware safeties, no
// more.
type WakeFunc func(monitorID uint8, value int32, level domain.FaultLevel)
