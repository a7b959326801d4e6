// vram.go - Nine-bank tile-oriented video RAM with OR-of-mapped-banks usages

/*
vram.go - Video RAM

The NDS's 656KiB of VRAM is split into nine independently sized banks
(A-I), each individually mappable into one of several "usages": background
graphics for engine A/B, sprite graphics for A/B, extended palette, texture
image, texture palette, co-CPU work RAM, or a raw LCDC passthrough window.

Every byte address within a usage is the bitwise OR of every bank currently
mapped there; writes broadcast to every mapped bank (spec 3 invariant).
This mirrors how the real hardware's bus arbitration works and is load-
bearing for games that deliberately overlap banks. Grounded on
_examples/original_source/core/src/gpu/vram/access.rs (see SPEC_FULL.md).
*/

package ndscore

const (
	VRAMBankASize = 128 * 1024
	VRAMBankBSize = 128 * 1024
	VRAMBankCSize = 128 * 1024
	VRAMBankDSize = 128 * 1024
	VRAMBankESize = 64 * 1024
	VRAMBankFSize = 16 * 1024
	VRAMBankGSize = 16 * 1024
	VRAMBankHSize = 32 * 1024
	VRAMBankISize = 16 * 1024
)

var vramBankSizes = [9]int{
	VRAMBankASize, VRAMBankBSize, VRAMBankCSize, VRAMBankDSize,
	VRAMBankESize, VRAMBankFSize, VRAMBankGSize, VRAMBankHSize, VRAMBankISize,
}

// VRAMUsage is a mappable destination a bank can be routed to.
type VRAMUsage uint8

const (
	UsageNone VRAMUsage = iota
	UsageBGEngineA
	UsageBGEngineB
	UsageOBJEngineA
	UsageOBJEngineB
	UsageExtPaletteBG
	UsageExtPaletteOBJ
	UsageTextureImage
	UsageTexturePalette
	UsageARM7WRAM
	UsageLCDC
	numUsages
)

// VRAM models the nine banks and their current usage routing.
type VRAM struct {
	banks [9][]byte
	usage [9]VRAMUsage
	// offset is the bank's byte offset within its usage's address window,
	// matching VRAMCNT's offset field for banks that support sub-window
	// placement (C, D, E..G for OBJ/BG extended slots).
	offset [9]uint32
}

func NewVRAM() *VRAM {
	v := &VRAM{}
	for i, sz := range vramBankSizes {
		v.banks[i] = make([]byte, sz)
	}
	return v
}

// MapBank routes bank (0=A..8=I) to usage at the given byte offset within
// that usage's window. Passing UsageNone unmaps it.
func (v *VRAM) MapBank(bank int, usage VRAMUsage, offset uint32) {
	v.usage[bank] = usage
	v.offset[bank] = offset
}

func (v *VRAM) BankUsage(bank int) VRAMUsage { return v.usage[bank] }

// usageWindowSize is the addressable span of one usage's address window
// (not the sum of bank sizes - multiple banks can overlap the same window).
func usageWindowSize(u VRAMUsage) uint32 {
	switch u {
	case UsageBGEngineA, UsageOBJEngineA:
		return 512 * 1024
	case UsageBGEngineB, UsageOBJEngineB:
		return 128 * 1024
	case UsageExtPaletteBG, UsageExtPaletteOBJ:
		return 32 * 1024
	case UsageTextureImage:
		return 512 * 1024
	case UsageTexturePalette:
		return 16 * 1024
	case UsageARM7WRAM:
		return Arm7WRAMSize
	case UsageLCDC:
		return 656 * 1024
	default:
		return 0
	}
}

// Read8 ORs together every bank currently mapped to usage that covers addr.
func (v *VRAM) Read8(usage VRAMUsage, addr uint32) byte {
	var result byte
	for i := range v.banks {
		if v.usage[i] != usage {
			continue
		}
		bankAddr := int64(addr) - int64(v.offset[i])
		if bankAddr < 0 || bankAddr >= int64(len(v.banks[i])) {
			continue
		}
		result |= v.banks[i][bankAddr]
	}
	return result
}

func (v *VRAM) Read16(usage VRAMUsage, addr uint32) uint16 {
	return uint16(v.Read8(usage, addr)) | uint16(v.Read8(usage, addr+1))<<8
}

func (v *VRAM) Read32(usage VRAMUsage, addr uint32) uint32 {
	return uint32(v.Read16(usage, addr)) | uint32(v.Read16(usage, addr+2))<<16
}

// Write8 broadcasts to every bank currently mapped to usage that covers addr.
func (v *VRAM) Write8(usage VRAMUsage, addr uint32, value byte) {
	for i := range v.banks {
		if v.usage[i] != usage {
			continue
		}
		bankAddr := int64(addr) - int64(v.offset[i])
		if bankAddr < 0 || bankAddr >= int64(len(v.banks[i])) {
			continue
		}
		v.banks[i][bankAddr] = value
	}
}

func (v *VRAM) Write16(usage VRAMUsage, addr uint32, value uint16) {
	v.Write8(usage, addr, byte(value))
	v.Write8(usage, addr+1, byte(value>>8))
}

func (v *VRAM) Write32(usage VRAMUsage, addr uint32, value uint32) {
	v.Write16(usage, addr, uint16(value))
	v.Write16(usage, addr+2, uint16(value>>16))
}

// BankBytes exposes a bank's raw backing slice, used by LCDC-window direct
// access and by the VRAM debug dump (vramdebug.go).
func (v *VRAM) BankBytes(bank int) []byte { return v.banks[bank] }

func (v *VRAM) Reset() {
	for i := range v.banks {
		clear(v.banks[i])
		v.usage[i] = UsageNone
		v.offset[i] = 0
	}
}
