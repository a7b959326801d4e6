package ndscore

import "testing"

func TestTimerOverflowReschedulesAndFiresIRQ(t *testing.T) {
	sch := NewScheduler()
	irq := NewIRQController()
	tb := NewTimerBank(sch, irq)

	tb.SetReload(0, 0xFFFE) // 2 ticks to overflow
	tb.SetControl(0, 0, false, true, true)

	sch.HandlePending(2) // prescaler 0 == 1 cycle/tick, 2 ticks to wrap
	if irq.IF()&(1<<uint(IRQTimer0)) == 0 {
		t.Fatal("expected timer 0 overflow to raise its IRQ")
	}
}

func TestTimerCountUpChainsOnPredecessorOverflow(t *testing.T) {
	sch := NewScheduler()
	irq := NewIRQController()
	tb := NewTimerBank(sch, irq)

	tb.SetReload(1, 0xFFFF) // timer1 about to overflow on a single chain tick
	tb.SetControl(1, 0, true, true, true)
	tb.SetReload(0, 0xFFFF)
	tb.SetControl(0, 0, false, false, true)

	sch.HandlePending(1) // one cycle: timer0 overflows, chain-ticks timer1
	if irq.IF()&(1<<uint(IRQTimer1)) == 0 {
		t.Fatal("expected chained timer1 to overflow from a single timer0 tick")
	}
}

func TestTimerCounterSynthesizesElapsedTicks(t *testing.T) {
	sch := NewScheduler()
	irq := NewIRQController()
	tb := NewTimerBank(sch, irq)

	tb.SetReload(2, 0)
	tb.SetControl(2, 1, false, false, true) // prescaler /64

	sch.HandlePending(0) // dispatch anything due at t=0 (only the overflow is scheduled, later)
	got := tb.Counter(2, 128)
	if got != 2 {
		t.Fatalf("Counter at 128 cycles /64 prescale = %d, want 2", got)
	}
}

func TestTimerStopCancelsScheduledOverflow(t *testing.T) {
	sch := NewScheduler()
	irq := NewIRQController()
	tb := NewTimerBank(sch, irq)

	tb.SetReload(3, 0xFFFE)
	tb.SetControl(3, 0, false, true, true)
	tb.SetControl(3, 0, false, true, false) // disable before it fires

	sch.HandlePending(1000)
	if irq.IF()&(1<<uint(IRQTimer3)) != 0 {
		t.Fatal("stopped timer must not fire its scheduled overflow")
	}
}
