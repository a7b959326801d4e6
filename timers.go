// timers.go - Four prescaled, optionally chained timers per CPU

/*
timers.go - Timers

Each CPU has four 16-bit timers. A running timer counts up from a
reloadable start value at one of four prescaler rates (1, 64, 256, 1024
cycles per tick) and fires an overflow (reload + optional IRQ) when it
wraps past 0xFFFF. "Count-up timing" lets timer N (N>0) instead tick once
per overflow of timer N-1, ignoring its own prescaler - the chaining spec
4.5 describes.

A prescaled timer is represented as a scheduled event at its next-overflow
timestamp (on-demand counter synthesis): the Scheduler fires SlotTimerN,
the handler reloads and reschedules, and the live counter value for CPU
reads is synthesized from (now - lastReloadTime) / prescalerDivisor on
demand, the way the teacher's `cpu_m68k.go` free-running cycle counter is
read back through a computed property rather than ticked one unit at a
time. A count-up timer instead keeps an explicit counter that chainTick
increments directly, since it has no prescaler period to synthesize from.
*/

package ndscore

var timerPrescaleDivisor = [4]Timestamp{1, 64, 256, 1024}

var timerSlots = [4]Slot{SlotTimer0, SlotTimer1, SlotTimer2, SlotTimer3}

// Timer is one 16-bit up-counter.
type Timer struct {
	reload        uint16
	prescaler     uint8 // 0..3 index into timerPrescaleDivisor
	countUp       bool  // ignored for timer 0 (no predecessor)
	enabled       bool
	irqOnOverflow bool

	lastReloadTime Timestamp // prescaled timers: cycle count counter last reached `reload`
	chainCount     uint32    // count-up timers: explicit live value
	running        bool
}

// TimerBank is the four timers belonging to one CPU.
type TimerBank struct {
	timers [4]Timer
	sch    *Scheduler
	irq    *IRQController
	irqSrc [4]IRQSource
}

func NewTimerBank(sch *Scheduler, irq *IRQController) *TimerBank {
	tb := &TimerBank{sch: sch, irq: irq, irqSrc: [4]IRQSource{IRQTimer0, IRQTimer1, IRQTimer2, IRQTimer3}}
	for i := range tb.timers {
		i := i
		sch.SetHandler(timerSlots[i], func(now Timestamp) { tb.overflow(i, now) })
	}
	return tb
}

// SetControl writes a timer's TMCNT_H-equivalent fields. Writing enabled
// from false to true reloads the counter and starts it running from now.
func (tb *TimerBank) SetControl(i int, prescaler uint8, countUp bool, irqOnOverflow, enabled bool) {
	t := &tb.timers[i]
	wasEnabled := t.enabled
	t.prescaler, t.countUp, t.irqOnOverflow = prescaler, countUp && i > 0, irqOnOverflow
	t.enabled = enabled

	if enabled && !wasEnabled {
		tb.start(i)
	} else if !enabled && wasEnabled {
		tb.stop(i)
	}
}

func (tb *TimerBank) SetReload(i int, value uint16) { tb.timers[i].reload = value }

// Control reports a timer's TMCNT_H fields as last written by SetControl,
// for register readback (registers.go) and save-state encoding.
func (tb *TimerBank) Control(i int) (prescaler uint8, countUp, irqOnOverflow, enabled bool) {
	t := &tb.timers[i]
	return t.prescaler, t.countUp, t.irqOnOverflow, t.enabled
}

func (tb *TimerBank) start(i int) {
	t := &tb.timers[i]
	t.running = true
	t.chainCount = uint32(t.reload)
	t.lastReloadTime = tb.sch.Now()
	if !t.countUp {
		tb.scheduleNextOverflow(i)
	}
}

func (tb *TimerBank) stop(i int) {
	t := &tb.timers[i]
	t.running = false
	tb.sch.Cancel(timerSlots[i])
}

func (tb *TimerBank) scheduleNextOverflow(i int) {
	t := &tb.timers[i]
	ticksToOverflow := Timestamp(0x10000 - int(t.reload))
	cycles := ticksToOverflow * timerPrescaleDivisor[t.prescaler]
	tb.sch.Schedule(timerSlots[i], tb.sch.Now()+cycles)
}

// overflow handles a prescaled timer's scheduled wraparound: reload, raise
// IRQ if enabled, reschedule, and chain-tick timer i+1 once if it is in
// count-up mode.
func (tb *TimerBank) overflow(i int, now Timestamp) {
	t := &tb.timers[i]
	if !t.running || t.countUp {
		return
	}
	t.lastReloadTime = now
	if t.irqOnOverflow {
		tb.irq.Raise(tb.irqSrc[i])
	}
	tb.scheduleNextOverflow(i)

	if i+1 < 4 {
		next := &tb.timers[i+1]
		if next.running && next.countUp {
			tb.chainTick(i+1, now)
		}
	}
}

// chainTick advances a count-up timer by exactly one count, independent of
// its own prescaler (spec 4.5), cascading into the next timer on overflow.
func (tb *TimerBank) chainTick(i int, now Timestamp) {
	t := &tb.timers[i]
	t.chainCount++
	if t.chainCount <= 0xFFFF {
		return
	}
	t.chainCount = uint32(t.reload)
	if t.irqOnOverflow {
		tb.irq.Raise(tb.irqSrc[i])
	}
	if i+1 < 4 {
		next := &tb.timers[i+1]
		if next.running && next.countUp {
			tb.chainTick(i+1, now)
		}
	}
}

// Counter synthesizes a running timer's current 16-bit value. Prescaled
// timers compute elapsed cycles since the last reload, divided by the
// prescaler; count-up timers return their explicit live counter.
func (tb *TimerBank) Counter(i int, now Timestamp) uint16 {
	t := &tb.timers[i]
	if !t.running {
		return t.reload
	}
	if t.countUp {
		return uint16(t.chainCount)
	}
	elapsed := (now - t.lastReloadTime) / timerPrescaleDivisor[t.prescaler]
	return uint16(int(t.reload) + int(elapsed))
}

func (tb *TimerBank) Reset() {
	for i := range tb.timers {
		tb.timers[i] = Timer{}
		tb.sch.Cancel(timerSlots[i])
	}
}
