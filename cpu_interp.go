// cpu_interp.go - Shared ARM/Thumb fetch-decode-execute core

/*
cpu_interp.go - Interpreter Core

One Core drives both CPUs; Arm9 and Arm7 (cpu9.go, cpu7.go) each wrap a
Core with the timing/MPU behaviour spec 4.3 says differs between them. The
decode step is table-dispatched on the instruction's high bits the way
cpu_z80.go dispatches the first opcode byte through baseOps[opcode]: ARM's
top 12 bits (cond-stripped) select one of a fixed set of category handlers,
Thumb's top 8 bits select one of its format handlers. This module does not
attempt full ARMv5TE coverage; see the "Not implemented" list at the
bottom, in the same spirit as cpu_m68k.go's own such list.
*/

package ndscore

// Variant distinguishes the ARMv5TE main CPU from the ARMv4T co-CPU - a
// tagged enum, not a subclass (spec 9).
type Variant uint8

const (
	VariantArm9 Variant = iota // ARMv5TE: has BLX (register), MPU; CLZ and interlocks not modelled, see the list below
	VariantArm7                // ARMv4T: no BLX/CLZ, no interlocks, no MPU
)

// BusAccessor is the narrow interface Core needs from whichever CPU wraps
// it - Arm9 and Arm7 both charge cycles and perform faults differently, so
// Core asks for reads/writes/timing through this instead of owning a *Bus
// directly.
type BusAccessor interface {
	FetchWord(addr uint32) uint32
	FetchHalf(addr uint32) uint16
	Read32(addr uint32) uint32
	Read16(addr uint32) uint16
	Read8(addr uint32) uint8
	Write32(addr uint32, v uint32)
	Write16(addr uint32, v uint16)
	Write8(addr uint32, v uint8)
	// Charge bills cycles to the scheduler for the access just performed.
	Charge(cycles int)
	// DataAbort is invoked when an access the MPU denies occurs (Arm9 only;
	// Arm7's implementation is a no-op since it has no MPU).
	DataAbort(addr uint32, isWrite bool)
}

// Core is the shared ARM/Thumb register file + pipeline + dispatch logic.
type Core struct {
	Regs    *RegisterFile
	Pipe    Pipeline
	Bus     BusAccessor
	Variant Variant

	Halted bool

	irqPending bool
	irqLine    bool // external line level, edge-detected into irqPending by IRQ()
}

func NewCore(bus BusAccessor, v Variant) *Core {
	return &Core{Regs: NewRegisterFile(), Bus: bus, Variant: v}
}

// pc returns the current r15 value. While an instruction executes that is
// its own address +8 (ARM) / +4 (Thumb), not the address of the
// instruction itself.
func (c *Core) pc() uint32 { return c.Regs.R[15] }

// ReloadPipeline refetches both pipeline slots from the current r15 and
// charges their fetch timings, per spec 4.3. Called after any write to r15
// or a mode switch that changes execution state.
func (c *Core) ReloadPipeline() {
	thumb := c.Regs.CPSR.Thumb()
	if thumb {
		c.Regs.R[15] &^= 1
		c.Pipe.slot[0] = uint32(c.Bus.FetchHalf(c.Regs.R[15]))
		c.Pipe.slot[1] = uint32(c.Bus.FetchHalf(c.Regs.R[15] + 2))
		c.Regs.R[15] += 4
	} else {
		c.Regs.R[15] &^= 3
		c.Pipe.slot[0] = c.Bus.FetchWord(c.Regs.R[15])
		c.Pipe.slot[1] = c.Bus.FetchWord(c.Regs.R[15] + 4)
		c.Regs.R[15] += 8
	}
	c.Pipe.valid[0], c.Pipe.valid[1] = true, true
}

// IRQ sets or clears the external IRQ line; a rising edge latches a
// pending interrupt serviced at the next instruction boundary.
func (c *Core) IRQ(assert bool) {
	if assert && !c.irqLine {
		c.irqPending = true
	}
	c.irqLine = assert
}

// Step executes exactly one instruction (or services one pending
// exception), advancing the pipeline and billing cycles to the scheduler
// through c.Bus.Charge.
func (c *Core) Step() {
	if c.irqPending && !c.Regs.CPSR.IRQDisabled() {
		c.irqPending = false
		c.serviceIRQ()
		return
	}
	if c.Halted {
		c.Bus.Charge(1)
		return
	}
	if !c.Pipe.valid[0] {
		c.ReloadPipeline()
	}

	instr := c.Pipe.slot[0]
	thumb := c.Regs.CPSR.Thumb()

	// Advance the pipeline: slot0 <- slot1, fetch new slot1. r15 keeps
	// reading as this instruction's address +8 (ARM) / +4 (Thumb) while it
	// executes and moves on afterwards, unless a handler reloaded the pipeline.
	c.Pipe.slot[0] = c.Pipe.slot[1]
	if thumb {
		nextFetchAddr := c.Regs.R[15]
		c.Pipe.slot[1] = uint32(c.Bus.FetchHalf(nextFetchAddr))
	} else {
		nextFetchAddr := c.Regs.R[15]
		c.Pipe.slot[1] = c.Bus.FetchWord(nextFetchAddr)
	}
	c.Pipe.valid[0] = false

	if thumb {
		c.execThumb(uint16(instr))
	} else {
		c.execARM(instr)
	}
	if !c.Pipe.valid[0] {
		c.Pipe.valid[0] = true
		if thumb {
			c.Regs.R[15] += 2
		} else {
			c.Regs.R[15] += 4
		}
	}
}

// serviceIRQ vectors to the IRQ exception, per spec 4.3's mode-change
// helper: save outgoing bank, load IRQ bank, store CPSR to SPSR_irq, jump
// to the fixed IRQ vector.
func (c *Core) serviceIRQ() {
	// lr_irq = address of the next instruction + 4. Between instructions
	// r15 already reads as that address +8 (ARM) / +4 (Thumb), so ARM state
	// takes 4 off.
	returnAddr := c.Regs.R[15]
	if !c.Regs.CPSR.Thumb() {
		returnAddr -= 4
	}
	c.Regs.EnterException(ModeIRQ, returnAddr, false)
	c.Regs.R[15] = vectorIRQ
	c.ReloadPipeline()
	c.Halted = false
}

// Exception vector addresses (fixed per spec 4.3; relocatable high-vector
// variants are not modelled, matching the "Not implemented" list below).
const (
	vectorReset       = 0x00000000
	vectorUndefined   = 0x00000004
	vectorSWI         = 0x00000008
	vectorPrefetchAbt = 0x0000000C
	vectorDataAbt     = 0x00000010
	vectorIRQ         = 0x00000018
	vectorFIQ         = 0x0000001C
)

func (c *Core) raiseUndefined() {
	c.Regs.EnterException(ModeUndefined, c.Regs.R[15]-4, false)
	c.Regs.R[15] = vectorUndefined
	c.ReloadPipeline()
}

func (c *Core) raiseSWI() {
	c.Regs.EnterException(ModeSupervisor, c.Regs.R[15]-4, false)
	c.Regs.R[15] = vectorSWI
	c.ReloadPipeline()
}

func (c *Core) raiseDataAbort() {
	c.Regs.EnterException(ModeAbort, c.Regs.R[15], false)
	c.Regs.R[15] = vectorDataAbt
	c.ReloadPipeline()
}

// setPC writes r15 and reloads the pipeline, deriving the execution state
// per spec 4.3: from the destination address's low bit if thumbFromBit0 is
// true, otherwise preserved from the current CPSR.
func (c *Core) setPC(addr uint32, thumbFromBit0 bool) {
	if thumbFromBit0 {
		c.Regs.CPSR.setThumb(addr&1 != 0)
	}
	c.Regs.R[15] = addr
	c.ReloadPipeline()
}

/*
Not implemented (mirrors cpu_m68k.go's own such list):
  - Coprocessor instructions (LDC/STC/CDP/MCR/MRC), CP15 included: they
    take the undefined-instruction exception.
  - CLZ (its encoding reaches the data-processing handler) and the
    immediate BLX form (condition 0xF never passes, so it does nothing).
  - UMULL/UMLAL/SMULL/SMLAL 64-bit multiply forms.
  - SWP/SWPB atomic swap.
  - Saturated arithmetic (QADD/QSUB family) and the 16x16 multiply-
    accumulate DSP extensions.
  - LDM/STM's S-bit user-bank register transfer (armBlockTransfer reads
    the bit and ignores it).
  - Per-register load-use interlock stalls; cpu9.go's per-region wait
    table stands in for them.
  - Debug/trace hardware (watchpoint/breakpoint units).
  - High-vector (0xFFFF0000-based) exception vector relocation.
*/
