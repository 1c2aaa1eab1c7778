package printer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/paperboy/types"
)

// FilePrinter appends receipts to a spool file. It is the fallback for
// machines without a physical printer attached and doubles as the test
// adapter: the output is exactly what the device would print, plus a
// cut marker.
type FilePrinter struct {
	path string
}

// NewFilePrinter creates a file-backed printer writing to path.
func NewFilePrinter(path string) *FilePrinter {
	if path == "" {
		path = "printed_tasks.txt"
	}
	return &FilePrinter{path: path}
}

// Print appends one rendered receipt to the spool file.
func (p *FilePrinter) Print(_ context.Context, rendered []byte) error {
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open spool file %s: %v: %w", p.path, err, types.ErrDeviceUnavailable)
	}
	defer func() { _ = f.Close() }()

	cutLine := "\n" + strings.Repeat("-", 10) + " CUT HERE " + strings.Repeat("-", 10) + "\n\n"
	if _, err := f.Write(append(rendered, []byte(cutLine)...)); err != nil {
		return fmt.Errorf("write spool file %s: %v: %w", p.path, err, types.ErrDeviceUnavailable)
	}
	return nil
}
