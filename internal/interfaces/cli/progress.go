package cli

import (
	"io"

	"gopkg.in/cheggaaa/pb.v1"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
)

// newProgressFunc draws one bar per batch of solves on w.
func newProgressFunc(w io.Writer) optimization.ProgressFunc {
	return func(label string, total int) optimization.ProgressReporter {
		bar := pb.New(total).Prefix(label + " ")
		bar.Output = w
		bar.ShowTimeLeft = false
		bar.ShowSpeed = false
		return bar.Start()
	}
}
