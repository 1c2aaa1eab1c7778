package printer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/josephgoksu/paperboy/types"
)

// ESC/POS control sequences. Only the handful the receipts need:
// initialize, feed, partial cut.
var (
	escInit = []byte{0x1b, 0x40}
	escFeed = []byte{0x1b, 0x64, 0x04} // feed 4 lines before cutting
	escCut  = []byte{0x1d, 0x56, 0x01} // partial cut
)

// NetworkPrinter drives a thermal printer over a raw TCP socket
// (JetDirect port 9100). Connection and write failures surface as
// types.ErrDeviceUnavailable: the device being unreachable is a
// batch-level condition, not a per-task one.
type NetworkPrinter struct {
	addr    string
	timeout time.Duration
}

// NewNetworkPrinter creates a printer adapter for the given host:port.
func NewNetworkPrinter(addr string, timeout time.Duration) *NetworkPrinter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NetworkPrinter{addr: addr, timeout: timeout}
}

// Print sends one rendered receipt and cuts the paper. A fresh
// connection per job keeps a wedged printer from pinning a socket
// across cycles.
func (p *NetworkPrinter) Print(ctx context.Context, rendered []byte) error {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("dial printer %s: %v: %w", p.addr, err, types.ErrDeviceUnavailable)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(p.timeout))
	}

	payload := make([]byte, 0, len(rendered)+8)
	payload = append(payload, escInit...)
	payload = append(payload, rendered...)
	payload = append(payload, '\n')
	payload = append(payload, escFeed...)
	payload = append(payload, escCut...)

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write to printer %s: %v: %w", p.addr, err, types.ErrDeviceUnavailable)
	}
	return nil
}
