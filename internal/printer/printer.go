// Package printer renders tasks as receipt-style briefings and drives
// a thermal printer through a narrow adapter interface.
package printer

import "context"

// Printer is the physical output collaborator. Print either fully
// succeeds or fails; a failure wrapping types.ErrDeviceUnavailable
// means the device is offline or out of paper and the whole batch
// should be retried next cycle.
type Printer interface {
	Print(ctx context.Context, rendered []byte) error
}
