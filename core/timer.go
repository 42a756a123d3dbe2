package core

// Timer represents a scheduled event. Handlers run with interrupts masked
// and return SF_RESCHEDULE after advancing WakeTime to run again.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// MicrosecondClock is the RP2040/RP2350 timer peripheral rate
const MicrosecondClock = 1000000

// TimerQueue is a wake-time ordered list of timers.
// Times are free-running uint32 ticks and compare modulo 2^32.
type TimerQueue struct {
	list *Timer
}

// timeBefore reports whether a is earlier than b, tolerating wraparound
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule adds a timer to the queue
func (q *TimerQueue) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	q.insert(t)
}

func (q *TimerQueue) insert(t *Timer) {
	if q.list == nil || timeBefore(t.WakeTime, q.list.WakeTime) {
		t.Next = q.list
		q.list = t
		return
	}

	current := q.list
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer due at or before now
func (q *TimerQueue) Dispatch(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for q.list != nil && !timeBefore(now, q.list.WakeTime) {
		timer := q.list
		q.list = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			q.insert(timer)
		}
	}
}

// NextWake returns the wake time of the earliest queued timer
func (q *TimerQueue) NextWake() (uint32, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if q.list == nil {
		return 0, false
	}
	return q.list.WakeTime, true
}
