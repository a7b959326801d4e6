// cpu7.go - ARMv4T co-CPU wrapper: static bus timing, no MPU

/*
cpu7.go - Arm7

The co-CPU has no MPU and no register interlocks (spec 4.3): every access
costs whatever its region's static wait-state entry says, with no
protection check and no DataAbort path (the interface method is a no-op
so Core's shared code can call it unconditionally). This is the simpler
twin of cpu9.go; same waitRegion table shape, no mpuRegion table at all.
*/

package ndscore

// Arm7 is the co-CPU BusAccessor.
type Arm7 struct {
	Core *Core
	bus  *Bus
	sch  *Scheduler
	waits []waitRegion
}

func NewArm7(bus *Bus, sch *Scheduler) *Arm7 {
	a := &Arm7{bus: bus, sch: sch}
	a.Core = NewCore(a, VariantArm7)
	a.waits = []waitRegion{
		{0x02000000, 0x02FFFFFF, 3, 3, 3}, // main RAM, uniform cost from the arm7 side
		{0x03000000, 0x037FFFFF, 1, 1, 1}, // shared + local WRAM
		{0x04000000, 0x04FFFFFF, 1, 1, 1}, // I/O
		{0x06000000, 0x06FFFFFF, 1, 1, 1}, // VRAM (arm7-visible window)
		{0x00000000, 0x00003FFF, 1, 1, 1}, // BIOS
	}
	return a
}

func (a *Arm7) waitFor(addr uint32, width int) int {
	for _, w := range a.waits {
		if addr >= w.base && addr <= w.end {
			if width == 2 {
				return w.n16
			}
			return w.nSeq
		}
	}
	return 1
}

func (a *Arm7) FetchWord(addr uint32) uint32 {
	v := a.bus.Read(addr, 4, AccessFetch)
	a.Charge(a.waitFor(addr, 4))
	return v
}

func (a *Arm7) FetchHalf(addr uint32) uint16 {
	v := uint16(a.bus.Read(addr, 2, AccessFetch))
	a.Charge(a.waitFor(addr, 2))
	return v
}

func (a *Arm7) Read32(addr uint32) uint32 { return a.bus.Read(addr, 4, AccessData) }
func (a *Arm7) Read16(addr uint32) uint16 { return uint16(a.bus.Read(addr, 2, AccessData)) }
func (a *Arm7) Read8(addr uint32) uint8   { return uint8(a.bus.Read(addr, 1, AccessData)) }

func (a *Arm7) Write32(addr uint32, v uint32) { a.bus.Write(addr, 4, v, AccessData) }
func (a *Arm7) Write16(addr uint32, v uint16) { a.bus.Write(addr, 2, uint32(v), AccessData) }
func (a *Arm7) Write8(addr uint32, v uint8)   { a.bus.Write(addr, 1, uint32(v), AccessData) }

func (a *Arm7) Charge(cycles int) {
	a.sch.Advance(Timestamp(cycles))
	a.sch.HandlePending(a.sch.Now())
}

// DataAbort is unreachable on real ARMv4T co-CPU hardware (no MPU); kept
// to satisfy BusAccessor so Core's shared code never special-cases variant.
func (a *Arm7) DataAbort(addr uint32, isWrite bool) {}

func (a *Arm7) Step() { a.Core.Step() }
