// scheduler.go - Event-driven scheduler for the NDS emulation core

/*
scheduler.go - Per-CPU Event Scheduler

Each CPU (main and co-CPU) owns a Scheduler: a monotonic cycle counter plus
a set of fixed-index event slots. Slots give O(1) cancel/reschedule, which
matters because timers, DMA triggers and the video/audio tick handlers are
rescheduled every few hundred cycles.

A slot holds at most one pending timestamp. Scheduling a slot that already
has an entry replaces it. Dispatch order for two slots due at the same
timestamp is slot index order, lowest first - TestSchedulerOrdersBySlotOnTie
checks this.

There is no global scheduler type. Emulator.RunFrame/stepOnce (emulator.go)
interleaves the two per-CPU schedulers one instruction at a time; the frame
end is the only cross-CPU boundary, and no DS-slot data-ready or power
shutdown synchronisation points are modelled.
*/

package ndscore

import "container/heap"

// Timestamp is a monotonic master-cycle count. For the co-CPU, which runs at
// half the main CPU's rate, a Timestamp still counts in the co-CPU's own
// cycles; conversion between the two domains is explicit (see MainToArm7 and
// Arm7ToMain).
type Timestamp int64

const TimestampInfinite Timestamp = 1<<63 - 1

// MainToArm7 and Arm7ToMain convert a main-CPU timestamp to the co-CPU's
// half-rate domain, or vice versa. The main CPU runs at ~33.5MHz, the co-CPU at half
// that, so one co-CPU cycle spans two main-CPU cycles.
func MainToArm7(t Timestamp) Timestamp { return t / 2 }
func Arm7ToMain(t Timestamp) Timestamp { return t * 2 }

// EventHandler is invoked when its scheduled timestamp has been reached.
// now is the time passed to HandlePending, which may be later than the
// requested timestamp if the scheduler is polled coarsely; the requested
// timestamp itself is not passed to the handler.
type EventHandler func(now Timestamp)

// Slot is a fixed reserved index into a Scheduler's event table. Event kinds
// are tagged constants so dispatch order between simultaneous events is
// deterministic (lowest slot first), per spec 4.1.
type Slot int

const (
	SlotDMA0 Slot = iota
	SlotDMA1
	SlotDMA2
	SlotDMA3
	SlotTimer0
	SlotTimer1
	SlotTimer2
	SlotTimer3
	SlotIRQCheck
	SlotGeometryFIFO
	SlotAudioSample
	SlotHBlank
	SlotHBlankEnd
	SlotVBlank
	SlotVCount
	SlotDSSlot
	SlotRTC
	NumSlots
)

type schedEntry struct {
	slot Slot
	when Timestamp
}

// schedHeap is a binary min-heap over schedEntry ordered by (when, slot).
type schedHeap []schedEntry

func (h schedHeap) Len() int { return len(h) }
func (h schedHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].slot < h[j].slot
}
func (h schedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *schedHeap) Push(x any)   { *h = append(*h, x.(schedEntry)) }
func (h *schedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is a single CPU's cooperative, single-threaded event queue.
type Scheduler struct {
	now      Timestamp
	handlers [NumSlots]EventHandler
	slotTime [NumSlots]Timestamp // Timestamp(-1) if slot has no pending entry
	queue    schedHeap
}

const noEntry Timestamp = -1

func NewScheduler() *Scheduler {
	s := &Scheduler{queue: make(schedHeap, 0, NumSlots)}
	for i := range s.slotTime {
		s.slotTime[i] = noEntry
	}
	return s
}

// SetHandler registers the callback invoked when slot fires. Must be called
// before the slot is ever scheduled.
func (s *Scheduler) SetHandler(slot Slot, h EventHandler) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	s.handlers[slot] = h
}

// Now returns the scheduler's current cycle count.
func (s *Scheduler) Now() Timestamp { return s.now }

// Schedule inserts or replaces the pending entry for slot. Fails silently
// (per spec 4.1) if slot is out of range.
func (s *Scheduler) Schedule(slot Slot, timestamp Timestamp) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	s.slotTime[slot] = timestamp
	heap.Push(&s.queue, schedEntry{slot: slot, when: timestamp})
}

// Cancel removes slot's pending entry, if any. The heap entry is left in
// place and skipped lazily at pop time (cheaper than a heap-internal
// decrease-key, and slots are cancelled far less often than scheduled).
func (s *Scheduler) Cancel(slot Slot) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	s.slotTime[slot] = noEntry
}

// NextEventTime returns the earliest live scheduled timestamp, or
// TimestampInfinite if no slot is pending.
func (s *Scheduler) NextEventTime() Timestamp {
	for len(s.queue) > 0 {
		top := s.queue[0]
		if s.slotTime[top.slot] != top.when {
			// Stale (cancelled or superseded) entry; drop and keep looking.
			heap.Pop(&s.queue)
			continue
		}
		return top.when
	}
	return TimestampInfinite
}

// HandlePending pops and dispatches every live entry whose timestamp is <=
// now, in (timestamp, slot) order. Handlers may re-schedule themselves or
// other slots; those re-insertions are visited in the same pass if they are
// also due by now.
func (s *Scheduler) HandlePending(now Timestamp) {
	s.now = now
	for len(s.queue) > 0 {
		top := s.queue[0]
		if s.slotTime[top.slot] != top.when {
			heap.Pop(&s.queue)
			continue
		}
		if top.when > now {
			break
		}
		heap.Pop(&s.queue)
		s.slotTime[top.slot] = noEntry
		if h := s.handlers[top.slot]; h != nil {
			h(now)
		}
	}
}

// Advance moves the cycle counter forward without dispatching; used by
// callers that charge cycles for instruction execution and flush events
// separately via HandlePending.
func (s *Scheduler) Advance(delta Timestamp) {
	s.now += delta
}
