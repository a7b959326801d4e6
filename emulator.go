// emulator.go - Top-level machine: construction, MMIO wiring, frame loop

/*
emulator.go - Emulator

The top-level object a front end constructs: it owns every subsystem built
elsewhere in this package and wires them together the way the teacher's
`main()` wires a SystemBus to a CPU and its peripherals via `MapIO` calls,
generalised to two CPUs and the much larger NDS device set. NewEmulator
builds the buses, schedulers, IRQ controllers, DMA controllers and timers
first, then the CPUs, then VRAM, the 2D/3D engines, the mixer and the
DS-slot devices, then maps the RAM regions and I/O registers onto both
buses, and last installs the scheduler handlers that drive scanline/sample
timing.

Running is an instruction at a time, not a batch: RunFrame steps whichever
CPU's scheduler is furthest behind until the frame counter advances, the
same cooperative two-clock-domain approach spec
4.1 describes for keeping the co-CPU's half-rate scheduler in lockstep
with the main CPU's.
*/

package ndscore

import "fmt"

// Cycle-domain constants, in main-CPU cycles: a scanline is 355 dots of 6
// cycles each (2130 cycles) and a frame is 263 scanlines, the first 192
// visible. They are close enough for frame-accurate scheduling without
// claiming hardware precision.
const (
	cyclesPerScanline9 Timestamp = 2130
	scanlinesPerFrame            = 263
	visibleScanlines             = 192
)

// KeypadState is the external input interface (spec 6): every button
// line, active when true (inverted to the hardware's active-low KEYINPUT
// register at the MMIO boundary, not here).
type KeypadState struct {
	A, B, Select, Start      bool
	Right, Left, Up, Down    bool
	R, L, X, Y               bool
	Lid                      bool // closed; reported through EXTKEYIN, raises no IRQ
}

// FrameSink receives one completed pair of top/bottom screen buffers
// (spec 4.7's dual-screen output); any 3D-engine output has already been
// blended into the top buffer. cmd/ndsrun's ebiten front end is the real
// consumer.
type FrameSink interface {
	PushFrame(top, bottom [ScreenHeight][ScreenWidth]Color)
}

// Emulator is the fully wired machine.
type Emulator struct {
	mem *Memory

	bus9, bus7 *Bus
	sch9, sch7 *Scheduler
	irq9, irq7 *IRQController
	dma9, dma7 *DMAController
	tim9, tim7 *TimerBank

	Arm9 *Arm9
	Arm7 *Arm7

	vram     *VRAM
	EngineA  *Engine
	EngineB  *Engine
	Geometry *GeometryEngine
	Raster   Rasterizer

	Mixer *Mixer

	Cart    *CartROM
	SaveBus *SaveSPI
	Flash   *Flash
	RTC     *RTC

	vcount        int
	framesElapsed uint64
	top           [ScreenHeight][ScreenWidth]Color
	bottom        [ScreenHeight][ScreenWidth]Color
	frameSink     FrameSink
	Keys          KeypadState

	dmaPending9, dmaPending7 [4]dmaPendingRegs
}

// NewEmulator constructs every subsystem and wires their cross-references
// (IRQ controllers into DMA/timers, schedulers into timers, the shared
// VRAM into both 2D engines), then maps the flat memory regions onto both
// buses. bios9/bios7 must be exactly Arm9BIOSSize/Arm7BIOSSize; firmware
// and cartROM/cartSRAM may be empty for a BIOS-only boot.
func NewEmulator(bios9, bios7, firmware, cartROM, cartSRAM []byte, cartHeaderID uint32, clock Clock) (*Emulator, error) {
	mem, err := NewMemory(bios9, bios7, firmware, cartROM, cartSRAM)
	if err != nil {
		return nil, fmt.Errorf("ndscore: constructing memory: %w", err)
	}

	e := &Emulator{mem: mem}

	e.bus9 = NewBus(16384)
	e.bus7 = NewBus(16384)
	e.sch9 = NewScheduler()
	e.sch7 = NewScheduler()
	e.irq9 = NewIRQController()
	e.irq7 = NewIRQController()
	e.dma9 = NewDMAController(e.bus9, e.irq9)
	e.dma7 = NewDMAController(e.bus7, e.irq7)
	e.tim9 = NewTimerBank(e.sch9, e.irq9)
	e.tim7 = NewTimerBank(e.sch7, e.irq7)

	e.Arm9 = NewArm9(e.bus9, e.sch9)
	e.Arm7 = NewArm7(e.bus7, e.sch7)
	e.irq9.SetLineCallback(e.Arm9.Core.IRQ)
	e.irq7.SetLineCallback(e.Arm7.Core.IRQ)

	e.vram = NewVRAM()
	e.EngineA = NewEngine(true, e.vram)
	e.EngineB = NewEngine(false, e.vram)
	e.Geometry = NewGeometryEngine()
	e.Raster = NewSoftwareRasterizer(e.vram)

	e.Mixer = NewMixer()

	e.Cart = NewCartROM(cartROM, cartHeaderID)
	e.Flash = NewFlash(len(cartSRAM), [3]byte{0x20, 0x40, 0x12})
	if len(cartSRAM) > 0 {
		e.Flash.LoadContents(cartSRAM)
	}
	e.RTC = NewRTC(clock)
	e.SaveBus = NewSaveSPI()
	e.SaveBus.Attach(0, e.Flash)
	e.SaveBus.Attach(1, e.RTC)

	e.mapMemory()
	e.wireRegisters()
	e.scheduleFrameTiming()

	return e, nil
}

// SetFrameSink installs the front end's screen consumer; nil disables
// frame delivery (headless / test use).
func (e *Emulator) SetFrameSink(sink FrameSink) { e.frameSink = sink }

// SetAudioSink wires the mixer's output to an external device (cmd/ndsrun's
// oto-backed sink, or nil for silent/headless operation).
func (e *Emulator) SetAudioSink(sink AudioSink) { e.Mixer.SetSink(sink) }

// mapMemory installs the flat RAM regions built by NewMemory onto both
// buses' page tables at their spec-3 addresses. The BIOS images are mapped
// read-only; the DS-slot/RTC command registers are left off the direct RAM
// path (MMIO) since they have side effects a page pointer can't express.
func (e *Emulator) mapMemory() {
	e.bus9.MapRAM(0x02000000, 0x02FFFFFF, e.mem.MainRAM, MainRAMSize, AttrRead|AttrWriteByte|AttrWriteHWord)
	e.bus7.MapRAM(0x02000000, 0x02FFFFFF, e.mem.MainRAM, MainRAMSize, AttrRead|AttrWriteByte|AttrWriteHWord)

	e.bus9.MapRAM(0xFFFF0000, 0xFFFF0FFF, e.mem.BIOS9, Arm9BIOSSize, AttrRead)
	e.bus7.MapRAM(0x00000000, 0x00003FFF, e.mem.BIOS7, Arm7BIOSSize, AttrRead)

	e.bus7.MapRAM(0x03800000, 0x0380FFFF, e.mem.Arm7WRAM, Arm7WRAMSize, AttrRead|AttrWriteByte|AttrWriteHWord)

	e.applySharedWRAMMapping()
}

// applySharedWRAMMapping rebuilds both buses' shared-WRAM window per the
// current WRAMCNT split (memory.go); called at construction and whenever
// a guest write changes the split.
func (e *Emulator) applySharedWRAMMapping() {
	e.bus9.UnmapRAM(0x03000000, 0x037FFFFF)
	e.bus7.UnmapRAM(0x03000000, 0x033FFFFF)

	if w := e.mem.sharedWRAMWindow(true); w != nil {
		e.bus9.MapRAM(0x03000000, 0x037FFFFF, w, uint32(len(w)), AttrRead|AttrWriteByte|AttrWriteHWord)
	}
	if w := e.mem.sharedWRAMWindow(false); w != nil {
		e.bus7.MapRAM(0x03000000, 0x033FFFFF, w, uint32(len(w)), AttrRead|AttrWriteByte|AttrWriteHWord)
	}
}

// scheduleFrameTiming installs the HBlank/VBlank handlers on the main
// CPU's scheduler; the co-CPU stays in lockstep via RunFrame's
// catch-up loop rather than its own copy of scanline timing, since only
// one side owns the video hardware (spec 4.7).
func (e *Emulator) scheduleFrameTiming() {
	e.sch9.SetHandler(SlotHBlank, e.onHBlank)
	e.sch9.SetHandler(SlotVBlank, e.onVBlank)
	e.sch9.SetHandler(SlotAudioSample, e.onAudioSample)
	e.sch9.Schedule(SlotHBlank, cyclesPerScanline9)
	e.sch9.Schedule(SlotAudioSample, AudioTickPeriod)
}

func (e *Emulator) onAudioSample(now Timestamp) {
	e.Mixer.Tick()
	e.sch9.Schedule(SlotAudioSample, now+AudioTickPeriod)
}

func (e *Emulator) onHBlank(now Timestamp) {
	if e.vcount < visibleScanlines {
		e.top[e.vcount] = e.EngineA.RenderScanline(e.vcount)
		e.bottom[e.vcount] = e.EngineB.RenderScanline(e.vcount)
	}
	e.dma9.Trigger(TriggerHBlank)
	e.dma7.Trigger(TriggerHBlank)
	e.irq9.Raise(IRQHBlank)

	e.vcount++
	if e.vcount == visibleScanlines {
		e.sch9.Schedule(SlotVBlank, now+1)
	}
	if e.vcount >= scanlinesPerFrame {
		e.vcount = 0
		e.framesElapsed++
	}
	e.sch9.Schedule(SlotHBlank, now+cyclesPerScanline9)
}

func (e *Emulator) onVBlank(now Timestamp) {
	e.dma9.Trigger(TriggerVBlank)
	e.dma7.Trigger(TriggerVBlank)
	e.irq9.Raise(IRQVBlank)

	if len(e.Geometry.PolyRAM) > 0 {
		frame := e.Raster.RenderFrame(e.Geometry.PolyRAM)
		blend3DOntoEngineA(&e.top, frame)
	}
	e.Geometry.Flush()

	if e.frameSink != nil {
		e.frameSink.PushFrame(e.top, e.bottom)
	}
}

// blend3DOntoEngineA overlays the rasterizer's output onto engine A's
// scanout wherever the 3D layer produced an opaque pixel, approximating
// BG mode 6/engine-A-as-3D-target compositing (spec 4.7) without routing
// the 3D layer through the full priority-sorted blend stage.
func blend3DOntoEngineA(top *[ScreenHeight][ScreenWidth]Color, frame [ScreenHeight][ScreenWidth]Color) {
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if frame[y][x].Opaque {
				top[y][x] = frame[y][x]
			}
		}
	}
}

// RunFrame advances both CPUs until one full frame has elapsed,
// alternating single steps between whichever CPU's scheduler clock (in
// main-CPU cycle units) is further behind, so neither ever runs further
// ahead of the other than the cycles of one instruction - the cooperative two-clock-domain
// scheme spec 4.1 calls for.
func (e *Emulator) RunFrame() {
	target := e.framesElapsed + 1
	for e.framesElapsed < target {
		e.stepOnce()
	}
}

// stepOnce executes exactly one instruction on whichever CPU is furthest
// behind in main-CPU cycle time, then dispatches any scheduler events
// that became due as a result.
func (e *Emulator) stepOnce() {
	if e.sch9.Now() <= Arm7ToMain(e.sch7.Now()) {
		e.Arm9.Step()
		e.sch9.HandlePending(e.sch9.Now())
	} else {
		e.Arm7.Step()
		e.sch7.HandlePending(e.sch7.Now())
	}
}

// SaveState writes every stateful component into w, tagged per
// component (savestate.go); a front end chooses when/where to persist
// the resulting bytes.
func (e *Emulator) SaveState(w *StateWriter) error {
	if err := w.Put("RG9", encodeRegisterFile(e.Arm9.Core.Regs)); err != nil {
		return err
	}
	if err := w.Put("RG7", encodeRegisterFile(e.Arm7.Core.Regs)); err != nil {
		return err
	}
	if err := w.Put("IQ9", encodeIRQController(e.irq9)); err != nil {
		return err
	}
	if err := w.Put("IQ7", encodeIRQController(e.irq7)); err != nil {
		return err
	}
	if err := w.Put("VRM", encodeVRAM(e.vram)); err != nil {
		return err
	}
	if err := w.Put("DM9", encodeDMAController(e.dma9)); err != nil {
		return err
	}
	if err := w.Put("DM7", encodeDMAController(e.dma7)); err != nil {
		return err
	}
	if err := w.Put("TM9", encodeTimerBank(e.tim9)); err != nil {
		return err
	}
	if err := w.Put("TM7", encodeTimerBank(e.tim7)); err != nil {
		return err
	}
	if err := w.Put("MIX", encodeMixer(e.Mixer)); err != nil {
		return err
	}
	if err := w.Put("GEO", encodeGeometryEngine(e.Geometry)); err != nil {
		return err
	}
	if err := w.Put("RTC", encodeRTC(e.RTC)); err != nil {
		return err
	}
	return w.Put("FLS", encodeFlash(e.Flash))
}

// LoadState restores every component SaveState wrote; sections absent
// from r (an older save) leave their component untouched (savestate.go's
// forward-compatibility rule).
func (e *Emulator) LoadState(r *StateReader) error {
	if err := r.Get("RG9", decodeRegisterFile(e.Arm9.Core.Regs)); err != nil {
		return err
	}
	if err := r.Get("RG7", decodeRegisterFile(e.Arm7.Core.Regs)); err != nil {
		return err
	}
	if err := r.Get("IQ9", decodeIRQController(e.irq9)); err != nil {
		return err
	}
	if err := r.Get("IQ7", decodeIRQController(e.irq7)); err != nil {
		return err
	}
	if err := r.Get("VRM", decodeVRAM(e.vram)); err != nil {
		return err
	}
	if err := r.Get("DM9", decodeDMAController(e.dma9)); err != nil {
		return err
	}
	if err := r.Get("DM7", decodeDMAController(e.dma7)); err != nil {
		return err
	}
	if err := r.Get("TM9", decodeTimerBank(e.tim9)); err != nil {
		return err
	}
	if err := r.Get("TM7", decodeTimerBank(e.tim7)); err != nil {
		return err
	}
	if err := r.Get("MIX", decodeMixer(e.Mixer)); err != nil {
		return err
	}
	if err := r.Get("GEO", decodeGeometryEngine(e.Geometry)); err != nil {
		return err
	}
	if err := r.Get("RTC", decodeRTC(e.RTC)); err != nil {
		return err
	}
	return r.Get("FLS", decodeFlash(e.Flash))
}
