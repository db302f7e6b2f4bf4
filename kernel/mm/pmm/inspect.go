package pmm

import (
	"io"

	"buhos/kernel/kfmt"
	"buhos/kernel/mm"
)

// Inspect writes the bitmap contents to w as runs of frames that share the
// same status, one run per line:
//
//	[0,255] = reserved
//	[256,300] = used
func (alloc *Allocator) Inspect(w io.Writer) {
	defer alloc.lock()()

	var (
		runStart mm.Frame
		runState FrameStatus
	)

	for frame := mm.Frame(0); uint32(frame) < alloc.bitmap.frames; frame++ {
		state := alloc.bitmap.Get(frame)
		if frame == 0 {
			runState = state
			continue
		}

		if state != runState {
			kfmt.Fprintf(w, "[%d,%d] = %s\n", runStart, frame-1, runState)
			runStart, runState = frame, state
		}
	}

	if alloc.bitmap.frames != 0 {
		kfmt.Fprintf(w, "[%d,%d] = %s\n", runStart, alloc.bitmap.frames-1, runState)
	}
}
