// cpu_core.go - Shared ARM/Thumb register file and mode banking

/*
cpu_core.go - CPU Register File and Pipeline

Both CPUs share this register-file shape even though the main CPU adds an
MPU and register interlocks and the co-CPU doesn't (spec 4.3). Sixteen
general registers, r0-r7 and r15 never banked; r8-r14 plus the saved status
word are banked per exception mode, per the mode table below. Both CPUs
get the same six-bank layout, FIQ bank included: nothing here keeps the
co-CPU out of FIQ mode. System shares User's bank, as on real
ARMv4T/v5TE.

A mode switch is a single helper (switchMode) that saves the outgoing
bank's r8-r14 into storage and loads the incoming bank's storage into
r8-r14, atomically with respect to the rest of the interpreter (the
interpreter itself is single-threaded; no lock is needed here, only
correct ordering). Entering an exception mode additionally stores the
outgoing CPSR into the incoming mode's SPSR slot.
*/

package ndscore

// Mode is one of the seven ARM processor modes (a tagged enumeration, not
// a class hierarchy, per spec 9).
type Mode uint8

const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

func (m Mode) valid() bool {
	switch m {
	case ModeUser, ModeFIQ, ModeIRQ, ModeSupervisor, ModeAbort, ModeUndefined, ModeSystem:
		return true
	default:
		return false
	}
}

// bankIndex maps a Mode to its banked-register storage slot. User and
// System share bank 0 (they have no private registers on real hardware).
func bankIndex(m Mode) int {
	switch m {
	case ModeFIQ:
		return 1
	case ModeIRQ:
		return 2
	case ModeSupervisor:
		return 3
	case ModeAbort:
		return 4
	case ModeUndefined:
		return 5
	default: // User, System
		return 0
	}
}

const numBanks = 6

// PSW is a processor status word: mode, condition flags, IRQ/FIQ disable
// bits, and the Thumb execution-state bit.
type PSW uint32

const (
	pswModeMask  PSW = 0x1F
	pswThumbBit  PSW = 1 << 5
	pswFIQDisBit PSW = 1 << 6
	pswIRQDisBit PSW = 1 << 7
	pswFlagMask  PSW = 0xF0000000
	FlagN        PSW = 1 << 31
	FlagZ        PSW = 1 << 30
	FlagC        PSW = 1 << 29
	FlagV        PSW = 1 << 28
)

func (p PSW) Mode() Mode    { return Mode(p & pswModeMask) }
func (p PSW) Thumb() bool   { return p&pswThumbBit != 0 }
func (p PSW) IRQDisabled() bool { return p&pswIRQDisBit != 0 }
func (p PSW) FIQDisabled() bool { return p&pswFIQDisBit != 0 }

func (p *PSW) setMode(m Mode)  { *p = (*p &^ pswModeMask) | PSW(m) }
func (p *PSW) setThumb(t bool) {
	if t {
		*p |= pswThumbBit
	} else {
		*p &^= pswThumbBit
	}
}

func (p PSW) flag(f PSW) bool { return p&f != 0 }
func (p *PSW) setFlag(f PSW, on bool) {
	if on {
		*p |= f
	} else {
		*p &^= f
	}
}

// RegisterFile is the architectural state shared by both interpreters.
type RegisterFile struct {
	R [16]uint32 // r0-r15; r15 mirrors the "executing" PC, see pipeline notes
	CPSR PSW

	// Banked r8-r14, indexed by bankIndex(mode). R[8:15] always holds the
	// current mode's registers; these arrays hold the inactive modes'
	// saved values.
	bankedLoHi [numBanks][7]uint32 // row 1: FIQ's r8..r14; row 0's first five: the non-FIQ r8..r12 while FIQ is active
	bankedHi   [numBanks][2]uint32 // r13 (sp), r14 (lr) for non-FIQ banks
	spsr       [numBanks]PSW
	hasSPSR    [numBanks]bool // false for bank 0 (User/System has no SPSR)
}

func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	rf.CPSR.setMode(ModeSupervisor)
	for i := 1; i < numBanks; i++ {
		rf.hasSPSR[i] = true
	}
	return rf
}

// switchMode saves the outgoing bank's r8-r14 and loads the incoming
// bank's. r0-r7 and r15 are never banked (spec 4.3).
func (rf *RegisterFile) switchMode(to Mode) {
	from := rf.CPSR.Mode()
	if from == to {
		return
	}
	fromBank := bankIndex(from)
	toBank := bankIndex(to)
	if fromBank == toBank {
		rf.CPSR.setMode(to)
		return
	}

	if fromBank == 1 || toBank == 1 {
		// FIQ banks r8-r12 as well as r13/r14; save/restore the full set.
		if fromBank == 1 {
			copy(rf.bankedLoHi[1][:5], rf.R[8:13])
			rf.bankedLoHi[1][5] = rf.R[13]
			rf.bankedLoHi[1][6] = rf.R[14]
		} else {
			copy(rf.bankedLoHi[0][:5], rf.R[8:13])
			rf.bankedHi[fromBank][0] = rf.R[13]
			rf.bankedHi[fromBank][1] = rf.R[14]
		}
		if toBank == 1 {
			copy(rf.R[8:13], rf.bankedLoHi[1][:5])
			rf.R[13] = rf.bankedLoHi[1][5]
			rf.R[14] = rf.bankedLoHi[1][6]
		} else {
			copy(rf.R[8:13], rf.bankedLoHi[0][:5])
			rf.R[13] = rf.bankedHi[toBank][0]
			rf.R[14] = rf.bankedHi[toBank][1]
		}
	} else {
		rf.bankedHi[fromBank][0] = rf.R[13]
		rf.bankedHi[fromBank][1] = rf.R[14]
		rf.R[13] = rf.bankedHi[toBank][0]
		rf.R[14] = rf.bankedHi[toBank][1]
	}
	rf.CPSR.setMode(to)
}

// EnterException switches to mode, stores the outgoing CPSR into that
// mode's SPSR, disables IRQ (and FIQ for Reset/FIQ entry), clears Thumb,
// and sets lr to returnAddr. The caller is responsible for setting r15 to
// the exception vector afterwards.
func (rf *RegisterFile) EnterException(mode Mode, returnAddr uint32, disableFIQ bool) {
	outgoing := rf.CPSR
	rf.switchMode(mode)
	bank := bankIndex(mode)
	if rf.hasSPSR[bank] {
		rf.spsr[bank] = outgoing
	}
	rf.R[14] = returnAddr
	rf.CPSR.setThumb(false)
	rf.CPSR.setFlag(pswIRQDisBit, true)
	if disableFIQ {
		rf.CPSR.setFlag(pswFIQDisBit, true)
	}
}

// RestoreFromException restores CPSR from the current mode's SPSR (used by
// the exception-return sequence, e.g. MOVS pc, lr).
func (rf *RegisterFile) RestoreFromException() {
	bank := bankIndex(rf.CPSR.Mode())
	if rf.hasSPSR[bank] {
		to := rf.spsr[bank].Mode()
		spsr := rf.spsr[bank]
		rf.switchMode(to)
		rf.CPSR = spsr
	}
}

func (rf *RegisterFile) SPSR() PSW {
	bank := bankIndex(rf.CPSR.Mode())
	return rf.spsr[bank]
}

func (rf *RegisterFile) SetSPSR(v PSW) {
	bank := bankIndex(rf.CPSR.Mode())
	if rf.hasSPSR[bank] {
		rf.spsr[bank] = v
	}
}

// Pipeline is the two-slot fetch pipeline described in spec 4.3: slot 0 is
// the instruction about to execute, slot 1 is the next-fetched word.
type Pipeline struct {
	slot    [2]uint32
	valid   [2]bool
}

func (p *Pipeline) Reload() { p.valid[0], p.valid[1] = false, false }
