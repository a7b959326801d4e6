// irq.go - Per-CPU interrupt controller

/*
irq.go - Interrupt Controller

Each CPU owns one IRQController: a 32-bit source mask (IE/interrupt
enable), a 32-bit pending-sources latch (IF, write-1-to-clear like the
real hardware), and a master enable bit (IME). Any write that changes
whether (IE & IF & IME) != 0 re-evaluates the CPU's IRQ line through the
callback installed by SetLine - the same "mutate then notify" shape
machine_bus.go uses for side-effecting register writes.
*/

package ndscore

// IRQSource is a bit index into IE/IF, one per interrupt source in spec
// 4.4's table (V-blank, H-blank, V-count match, the four timers per CPU,
// DS-slot, the four DMA channels, keypad, GBA-slot, the 3D geometry FIFO,
// and so on). Only the sources this core actually raises are named; the
// rest are addressable by raw index from dsslot.go/rtc.go.
type IRQSource uint8

const (
	IRQVBlank IRQSource = iota
	IRQHBlank
	IRQVCount
	IRQTimer0
	IRQTimer1
	IRQTimer2
	IRQTimer3
	IRQRTC // co-CPU only bit 7 on real hardware (serial communication); reused for RTC edge
	IRQDSSlotSend
	IRQKeypad
	IRQGBASlot
	IRQIPCSync
	IRQIPCFIFOEmpty
	IRQIPCFIFONotEmpty
	IRQDSSlotTransfer
	IRQDSSlotIREQMC
	IRQGeometryFIFO
	IRQScreensSwap
	IRQDMA0
	IRQDMA1
	IRQDMA2
	IRQDMA3
)

// IRQController is one CPU's interrupt enable/pending/master-enable state.
type IRQController struct {
	ie  uint32
	iF  uint32
	ime bool

	onLineChange func(asserted bool)
}

func NewIRQController() *IRQController { return &IRQController{} }

// SetLineCallback installs the function invoked whenever the computed IRQ
// line (IE & IF, gated by IME) changes level - normally Core.IRQ.
func (c *IRQController) SetLineCallback(f func(asserted bool)) { c.onLineChange = f }

func (c *IRQController) line() bool { return c.ime && c.ie&c.iF != 0 }

func (c *IRQController) notify() {
	if c.onLineChange != nil {
		c.onLineChange(c.line())
	}
}

// Raise sets source's pending bit, as hardware does the instant the
// condition occurs (independent of IE/IME - a disabled source still
// latches, it just does not assert the CPU line).
func (c *IRQController) Raise(source IRQSource) {
	c.iF |= 1 << uint(source)
	c.notify()
}

func (c *IRQController) IE() uint32 { return c.ie }
func (c *IRQController) IF() uint32 { return c.iF }
func (c *IRQController) IME() bool  { return c.ime }

func (c *IRQController) SetIE(v uint32) {
	c.ie = v
	c.notify()
}

// SetIF performs the write-1-to-clear semantics of the real IF register:
// bits written as 1 clear the corresponding pending bit, bits written as
// 0 are left untouched.
func (c *IRQController) SetIF(v uint32) {
	c.iF &^= v
	c.notify()
}

func (c *IRQController) SetIME(v bool) {
	c.ime = v
	c.notify()
}

func (c *IRQController) Reset() {
	c.ie, c.iF, c.ime = 0, 0, false
}
