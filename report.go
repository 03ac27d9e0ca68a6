package evoke

import (
	"fmt"
	"io"
	"log/slog"
)

// consoleReporter is the default Reporter: a structured log record plus a
// human-readable line on the runtime's output writer.
type consoleReporter struct {
	w   io.Writer
	log *slog.Logger
}

func (r *consoleReporter) ReportException(err error, async bool) {
	r.log.Error("uncaught exception", "error", err, "async", async)
	fmt.Fprintf(r.w, "Uncaught %v\n", err)
}
