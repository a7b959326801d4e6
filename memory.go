// memory.go - Flat memory regions backing the NDS address space

/*
memory.go - Memory Regions

Owns the contiguous byte slices that back main RAM, shared work RAM, each
CPU's local work RAM, the BIOS images, cartridge ROM/SRAM. These are plain
Go slices; the Bus (bus.go) builds host pointers into them for its
page-table fast path. Buffers are fields of this struct so a pointer into
one never outlives its backing array - rebuilding the page table on every
remap (Emulator.applySharedWRAMMapping) is how that invariant is enforced
(spec 9).
*/

package ndscore

import "fmt"

const (
	MainRAMSize    = 4 * 1024 * 1024 // 4MiB
	SharedWRAMSize = 32 * 1024       // 32KiB, splittable between CPUs
	Arm7WRAMSize   = 64 * 1024       // 64KiB, co-CPU local work RAM
	Arm9BIOSSize   = 4 * 1024
	Arm7BIOSSize   = 16 * 1024
	FirmwareSize   = 256 * 1024
	MaxCartROMSize = 512 * 1024 * 1024
)

// SharedWRAMMode selects how the 32KiB shared work RAM is split between the
// two CPUs. Values mirror WRAMCNT bits 0-1 of the real hardware.
type SharedWRAMMode uint8

const (
	WRAMModeArm9Full SharedWRAMMode = iota // all 32K mapped to main CPU
	WRAMModeSplitAB                        // 16K/16K split
	WRAMModeSplitBA                        // 16K/16K split, swapped
	WRAMModeArm7Full                       // all 32K mapped to co-CPU
)

// Memory holds every flat-buffer region named in spec 3.
type Memory struct {
	MainRAM    []byte
	SharedWRAM []byte
	Arm7WRAM   []byte
	BIOS9      []byte
	BIOS7      []byte
	Firmware   []byte
	CartROM    []byte
	CartSRAM   []byte

	wramMode SharedWRAMMode
}

// ConstructionError is returned by NewMemory/NewEmulator when an input blob
// fails a structural precondition (spec 7: construction errors).
type ConstructionError struct {
	Field string
	Msg   string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("ndscore: invalid %s: %s", e.Field, e.Msg)
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// NewMemory allocates every region and validates the caller-supplied
// images against spec 6/7: BIOS sizes are fixed, ROM must be a power of
// two not exceeding 512MiB.
func NewMemory(bios9, bios7, firmware, cartROM, cartSRAM []byte) (*Memory, error) {
	if len(bios9) != Arm9BIOSSize {
		return nil, &ConstructionError{"bios9", fmt.Sprintf("want %d bytes, got %d", Arm9BIOSSize, len(bios9))}
	}
	if len(bios7) != Arm7BIOSSize {
		return nil, &ConstructionError{"bios7", fmt.Sprintf("want %d bytes, got %d", Arm7BIOSSize, len(bios7))}
	}
	if len(firmware) != 0 && len(firmware) != FirmwareSize {
		return nil, &ConstructionError{"firmware", fmt.Sprintf("want %d bytes, got %d", FirmwareSize, len(firmware))}
	}
	if len(cartROM) != 0 {
		if !isPowerOfTwo(len(cartROM)) {
			return nil, &ConstructionError{"cartROM", "size is not a power of two"}
		}
		if len(cartROM) > MaxCartROMSize {
			return nil, &ConstructionError{"cartROM", "exceeds 512MiB"}
		}
	}

	m := &Memory{
		MainRAM:    make([]byte, MainRAMSize),
		SharedWRAM: make([]byte, SharedWRAMSize),
		Arm7WRAM:   make([]byte, Arm7WRAMSize),
		BIOS9:      append([]byte(nil), bios9...),
		BIOS7:      append([]byte(nil), bios7...),
		Firmware:   append([]byte(nil), firmware...),
		CartROM:    cartROM,
		CartSRAM:   cartSRAM,
	}
	return m, nil
}

// SetSharedWRAMMode changes the WRAMCNT split. Callers must rebuild both
// CPUs' page tables afterwards (Emulator.applySharedWRAMMapping).
func (m *Memory) SetSharedWRAMMode(mode SharedWRAMMode) { m.wramMode = mode }
func (m *Memory) SharedWRAMMode() SharedWRAMMode        { return m.wramMode }

// sharedWRAMWindow returns the byte-slice window of SharedWRAM visible to
// the given CPU ("9" or "7") under the current WRAMCNT mode.
func (m *Memory) sharedWRAMWindow(forArm9 bool) []byte {
	half := len(m.SharedWRAM) / 2
	switch m.wramMode {
	case WRAMModeArm9Full:
		if forArm9 {
			return m.SharedWRAM
		}
		return nil
	case WRAMModeArm7Full:
		if forArm9 {
			return nil
		}
		return m.SharedWRAM
	case WRAMModeSplitAB:
		if forArm9 {
			return m.SharedWRAM[:half]
		}
		return m.SharedWRAM[half:]
	case WRAMModeSplitBA:
		if forArm9 {
			return m.SharedWRAM[half:]
		}
		return m.SharedWRAM[:half]
	default:
		return nil
	}
}

func (m *Memory) Reset() {
	clear(m.MainRAM)
	clear(m.SharedWRAM)
	clear(m.Arm7WRAM)
	m.wramMode = WRAMModeArm9Full
}
