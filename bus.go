// bus.go - Per-CPU page-table bus with MMIO fallback

/*
bus.go - Bus / Page Table

Generalises the teacher's memory_bus.go (a single flat SystemBus with one
page size and one MMIO table) to the NDS's two heterogeneous buses: the
main CPU's system bus (16KiB pages) with a 4KiB local-memory overlay, and
the co-CPU's bus (16KiB pages). Each Bus keeps one array of Page entries
covering the full 4GiB guest space; a non-nil Page.ptr guarantees a direct
RAM mirror with no side effects (spec 3 invariant).

AccessKind distinguishes instruction fetch / data / DMA / debug accesses.
The bus itself uses it only to decide which MMIO reads update the open-bus
value (fetch and DMA reads do). A page flagged AttrWatch sends every kind
of access through the slow path; no watch callback is modelled.
*/

package ndscore

import "encoding/binary"

type AccessKind uint8

const (
	AccessFetch AccessKind = iota
	AccessData
	AccessDMA
	AccessDebug
)

// Attr is a bitmask of what a page entry permits.
type Attr uint8

const (
	AttrRead       Attr = 1 << 0
	AttrWriteByte  Attr = 1 << 1
	AttrWriteHWord Attr = 1 << 2 // also gates 32-bit writes
	AttrWatch      Attr = 1 << 3 // disable direct path, force MMIO dispatch (watchpoints)
)

// Page is one entry of the bus page table. ptr is nil for MMIO/unmapped
// addresses; otherwise ptr[0] backs the page's page-aligned guest address.
type Page struct {
	ptr  []byte
	attr Attr
}

// MMIOHandler services a slow-path access. width is 1, 2 or 4.
type MMIOHandler struct {
	Read  func(addr uint32, width int) uint32
	Write func(addr uint32, width int, value uint32)
}

// Bus is one CPU's view of the 4GiB guest address space.
type Bus struct {
	pageShift uint
	pageMask  uint32
	pages     []Page // len == 1<<(32-pageShift)

	mmio        map[uint32]*MMIOHandler // keyed by page index
	openBusWord uint32                  // last BIOS/DMA fetch, per spec 4.2 failure semantics

	onInvalidate func(startAddr, endAddr uint32) // pipeline/icache invalidation hook
}

// NewBus builds a bus with the given page size (16384 for system buses,
// 4096 for the main CPU's local-memory overlay, per spec 3).
func NewBus(pageSize uint32) *Bus {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		panic("ndscore: page size must be a power of two")
	}
	shift := uint(0)
	for (uint32(1) << shift) != pageSize {
		shift++
	}
	numPages := uint32(1) << (32 - shift)
	return &Bus{
		pageShift: shift,
		pageMask:  pageSize - 1,
		pages:     make([]Page, numPages),
		mmio:      make(map[uint32]*MMIOHandler),
	}
}

func (b *Bus) pageIndex(addr uint32) uint32 { return addr >> b.pageShift }

// MapRAM installs buf as a direct-access mirror starting at guestBase,
// repeating every mirrorStride bytes until guestEnd (inclusive). Passing
// mirrorStride == len(buf) maps exactly one copy. attr controls
// writability (AttrRead is implicit).
func (b *Bus) MapRAM(guestBase, guestEnd uint32, buf []byte, mirrorStride uint32, attr Attr) {
	if mirrorStride == 0 {
		mirrorStride = uint32(len(buf))
	}
	pageSize := uint32(1) << b.pageShift
	for base := guestBase; base <= guestEnd; base += mirrorStride {
		for off := uint32(0); off < mirrorStride && base+off <= guestEnd; off += pageSize {
			addr := base + off
			idx := b.pageIndex(addr)
			if int(idx) >= len(b.pages) {
				continue
			}
			bufOff := off % uint32(len(buf))
			end := bufOff + pageSize
			if end > uint32(len(buf)) {
				end = uint32(len(buf))
			}
			b.pages[idx] = Page{ptr: buf[bufOff:end:end], attr: AttrRead | attr}
		}
	}
	b.invalidate(guestBase, guestEnd)
}

// UnmapRAM clears page entries across the range, forcing the slow/MMIO path.
func (b *Bus) UnmapRAM(guestBase, guestEnd uint32) {
	pageSize := uint32(1) << b.pageShift
	for addr := guestBase; addr <= guestEnd; addr += pageSize {
		idx := b.pageIndex(addr)
		if int(idx) < len(b.pages) {
			b.pages[idx] = Page{}
		}
	}
	b.invalidate(guestBase, guestEnd)
}

// MapMMIO registers a slow-path handler for [guestBase, guestEnd]. Any
// RAM mapping on the same pages is removed.
func (b *Bus) MapMMIO(guestBase, guestEnd uint32, h *MMIOHandler) {
	pageSize := uint32(1) << b.pageShift
	for addr := guestBase; addr <= guestEnd; addr += pageSize {
		idx := b.pageIndex(addr)
		if int(idx) >= len(b.pages) {
			continue
		}
		b.pages[idx] = Page{}
		b.mmio[idx] = h
	}
	b.invalidate(guestBase, guestEnd)
}

// SetInvalidateHook installs the callback used to flush a CPU's prefetch
// pipeline / instruction cache when a remap affects fetched addresses.
func (b *Bus) SetInvalidateHook(f func(startAddr, endAddr uint32)) { b.onInvalidate = f }

func (b *Bus) invalidate(start, end uint32) {
	if b.onInvalidate != nil {
		b.onInvalidate(start, end)
	}
}

// Read reads width bytes (1, 2 or 4) at addr. kind selects fetch/data/
// DMA/debug semantics per spec 4.2.
func (b *Bus) Read(addr uint32, width int, kind AccessKind) uint32 {
	idx := b.pageIndex(addr)
	if int(idx) < len(b.pages) {
		page := b.pages[idx]
		if page.ptr != nil && page.attr&AttrRead != 0 && page.attr&AttrWatch == 0 {
			off := addr & b.pageMask
			return readWidth(page.ptr, off, width)
		}
		if h, ok := b.mmio[idx]; ok && h.Read != nil {
			v := h.Read(addr, width)
			if kind == AccessFetch || kind == AccessDMA {
				b.openBusWord = v
			}
			return v
		}
		// Watched RAM page: still perform the direct read, just via the slow
		// path so a debugger callback (not modelled here) could observe it.
		if page.ptr != nil && page.attr&AttrRead != 0 {
			off := addr & b.pageMask
			return readWidth(page.ptr, off, width)
		}
	}
	// Unmapped: open-bus value (spec 4.2 / 7).
	return b.openBusWord
}

// Write writes width bytes at addr. Unmapped writes are discarded (spec 4.2).
func (b *Bus) Write(addr uint32, width int, value uint32, kind AccessKind) {
	idx := b.pageIndex(addr)
	if int(idx) >= len(b.pages) {
		return
	}
	page := b.pages[idx]
	if page.ptr != nil && page.attr&AttrWatch == 0 {
		if writableFor(page.attr, width) {
			off := addr & b.pageMask
			writeWidth(page.ptr, off, width, value)
		}
		return
	}
	if h, ok := b.mmio[idx]; ok && h.Write != nil {
		h.Write(addr, width, value)
		return
	}
	if page.ptr != nil && writableFor(page.attr, width) {
		off := addr & b.pageMask
		writeWidth(page.ptr, off, width, value)
	}
}

func writableFor(attr Attr, width int) bool {
	if width == 1 {
		return attr&AttrWriteByte != 0
	}
	return attr&AttrWriteHWord != 0
}

func readWidth(buf []byte, off uint32, width int) uint32 {
	switch width {
	case 1:
		return uint32(buf[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf[off : off+2]))
	default:
		return binary.LittleEndian.Uint32(buf[off : off+4])
	}
}

func writeWidth(buf []byte, off uint32, width int, value uint32) {
	switch width {
	case 1:
		buf[off] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(value))
	default:
		binary.LittleEndian.PutUint32(buf[off:off+4], value)
	}
}

// OpenBusWord reports the last fetch/DMA value used to satisfy an
// unmapped read, per spec 4.2.
func (b *Bus) OpenBusWord() uint32 { return b.openBusWord }
