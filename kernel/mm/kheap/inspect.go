package kheap

import (
	"io"

	"buhos/kernel/kfmt"
)

// Entries returns a snapshot of the entry list starting with the head
// sentinel.
func (h *Heap) Entries() []Entry {
	defer h.lock()()

	var (
		entries []Entry
		addr    = headAddr
		hdr     = h.head
	)

	for {
		entries = append(entries, Entry{
			Addr:   addr,
			Next:   uintptr(hdr.next),
			Prev:   uintptr(hdr.prev),
			Size:   hdr.size,
			Status: hdr.status,
		})

		if hdr.next == 0 {
			return entries
		}
		addr = uintptr(hdr.next)
		hdr = h.load(addr)
	}
}

// Inspect writes one line per entry to w, starting with the head sentinel.
func (h *Heap) Inspect(w io.Writer) {
	for _, e := range h.Entries() {
		kfmt.Fprintf(w, "entry 0x%08x { flags: %s, size: %d, prev: 0x%08x, next: 0x%08x }\n",
			e.Addr, e.Status, e.Size, e.Prev, e.Next,
		)
	}
}

// Stats summarizes the entry list. Sizes are in bytes and exclude headers.
type Stats struct {
	FreeEntries, UsedEntries uint32
	FreeBytes, UsedBytes     uint64
}

// Stats returns a summary of the entry list.
func (h *Heap) Stats() Stats {
	var stats Stats
	for _, e := range h.Entries() {
		switch e.Status {
		case EntryFree:
			stats.FreeEntries++
			stats.FreeBytes += uint64(e.Size) * EntrySize
		case EntryUsed:
			stats.UsedEntries++
			stats.UsedBytes += uint64(e.Size) * EntrySize
		}
	}
	return stats
}
