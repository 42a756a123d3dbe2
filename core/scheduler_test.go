package core

import (
	"math"
	"testing"

	"floppier/protocol"
)

func TestPeriodTicks(t *testing.T) {
	testCases := []struct {
		tickRate uint32
		milliHz  uint32
		period   uint32
		ok       bool
	}{
		{10000, 440000, 11, true},
		{50000, 440000, 57, true},
		{50000, 1000000, 25, true},
		{1000, 1000000, 1, true},      // exactly half a tick rounds up
		{1000, 3000000, 0, false},     // faster than the tick
		{50000, 100, 0, false},        // beyond MaxPeriodTicks
		{50000, 0, 0, false},          // zero frequency
		{4000000, 30518, 65535, true}, // largest period
	}

	for _, tc := range testCases {
		period, err := PeriodTicks(tc.tickRate, tc.milliHz)
		if tc.ok && (err != nil || period != tc.period) {
			t.Errorf("PeriodTicks(%d, %d) = %d, %v; want %d", tc.tickRate, tc.milliHz, period, err, tc.period)
		}
		if !tc.ok && err != ErrOutOfRange {
			t.Errorf("PeriodTicks(%d, %d) = %d, %v; want ErrOutOfRange", tc.tickRate, tc.milliHz, period, err)
		}
	}
}

func TestStepIntervalWithinOneTick(t *testing.T) {
	const tickRate = 20000
	for _, milliHz := range []uint32{27500, 110000, 261626, 440000, 987767, 2093005} {
		e, _ := newTestEngine(t, testConfig(1, 1000, tickRate))
		e.Dispatch(protocol.NoteOn(protocol.Single(0), milliHz))

		exact := float64(tickRate) * 1000 / (2 * float64(milliHz))
		var last, steps int
		var prev uint16
		for tick := 1; steps < 6; tick++ {
			e.Tick()
			st, _ := e.Status(0)
			if st.Position == prev {
				continue
			}
			prev = st.Position
			if steps > 0 {
				interval := tick - last
				if math.Abs(float64(interval)-exact) > 1 {
					t.Errorf("%d mHz: interval %d ticks, exact %.2f", milliHz, interval, exact)
				}
			}
			last = tick
			steps++
		}
	}
}

// triangle gives the position and direction after k steps of a drive
// bouncing between 0 and max
func triangle(k, max int) (int, Direction) {
	cycle := k % (2 * max)
	if cycle < max {
		return cycle, Forward
	}
	return 2*max - cycle, Reverse
}

func TestTriangleSweep(t *testing.T) {
	const (
		tickRate = 10000
		max      = 200
		period   = 11 // 10000 / (2 * 440) rounded
	)
	cfg := testConfig(1, max, tickRate)
	e, chain := newTestEngine(t, cfg)
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))

	for tick := 1; tick <= period*(2*max+50); tick++ {
		e.Tick()
		st, _ := e.Status(0)
		steps := tick / period

		wantPos, wantDir := triangle(steps, max)
		if int(st.Position) != wantPos || st.Direction != wantDir {
			t.Fatalf("tick %d (%d steps): position %d %v, want %d %v",
				tick, steps, st.Position, st.Direction, wantPos, wantDir)
		}
		if st.Position > max {
			t.Fatalf("position %d beyond max", st.Position)
		}
		if got := chain.line(0); got != (steps%2 == 1) {
			t.Fatalf("tick %d: step line %v after %d steps", tick, got, steps)
		}
		if got := chain.line(1); got != (wantDir == Reverse) {
			t.Fatalf("tick %d: direction line %v, want %v", tick, got, wantDir)
		}
		if chain.line(2) {
			t.Fatalf("tick %d: active drive should pull select low", tick)
		}
	}
}

func TestNarrowTravelWindow(t *testing.T) {
	const (
		max    = 2
		period = 11
	)
	e, _ := newTestEngine(t, testConfig(1, max, 10000))
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))

	for tick := 1; tick <= period*40; tick++ {
		e.Tick()
		st, _ := e.Status(0)
		wantPos, wantDir := triangle(tick/period, max)
		if int(st.Position) != wantPos || st.Direction != wantDir {
			t.Fatalf("tick %d: position %d %v, want %d %v", tick, st.Position, st.Direction, wantPos, wantDir)
		}
	}
}

func TestNoteOffFreezes(t *testing.T) {
	e, chain := newTestEngine(t, testConfig(1, 200, 10000))
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))
	for i := 0; i < 11*37; i++ {
		e.Tick()
	}
	before, _ := e.Status(0)
	if before.Position != 37 {
		t.Fatalf("position %d after 37 steps", before.Position)
	}

	e.Dispatch(protocol.NoteOff(protocol.Single(0)))
	e.Tick()
	stepLine := chain.line(0)
	dirLine := chain.line(1)
	writes := chain.writes

	for i := 0; i < 5000; i++ {
		e.Tick()
	}
	after, _ := e.Status(0)
	if after.Position != before.Position || after.Direction != before.Direction {
		t.Errorf("silent drive moved: %+v -> %+v", before, after)
	}
	if after.Active {
		t.Error("drive still active after NoteOff")
	}
	if chain.line(0) != stepLine || chain.line(1) != dirLine {
		t.Error("silent drive changed its step or direction line")
	}
	if !chain.line(2) {
		t.Error("silent drive should release select")
	}
	if chain.writes != writes {
		t.Errorf("%d flushes while every drive was silent", chain.writes-writes)
	}
}

func TestResetRehomes(t *testing.T) {
	e, chain := newTestEngine(t, testConfig(1, 20, 10000))
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))
	for i := 0; i < 11*27; i++ {
		e.Tick()
	}
	st, _ := e.Status(0)
	if st.Position != 13 || st.Direction != Reverse {
		t.Fatalf("setup: %+v", st)
	}

	e.Dispatch(protocol.Reset(protocol.Single(0)))
	e.Tick()

	st, _ = e.Status(0)
	if st.Position != 0 || st.Direction != Forward || st.Active || st.PeriodTicks != 0 {
		t.Errorf("after reset: %+v", st)
	}
	if chain.line(0) || chain.line(1) || !chain.line(2) {
		t.Error("reset should leave step low, direction forward, select released")
	}
	if e.Diagnostics().Count(EvtReset) != 1 {
		t.Error("reset not recorded")
	}
}

func TestRetuneKeepsPosition(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(1, 200, 10000))
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))
	for i := 0; i < 11*5; i++ {
		e.Tick()
	}
	e.Dispatch(protocol.NoteOn(protocol.Single(0), 1000000))
	for i := 0; i < 5*3; i++ {
		e.Tick()
	}
	st, _ := e.Status(0)
	if st.PeriodTicks != 5 || st.Position != 8 {
		t.Errorf("after retune: %+v, want period 5 position 8", st)
	}
}

func TestSchedulerRejectsLineOutsideBank(t *testing.T) {
	cfg := testConfig(1, 100, 10000)
	cfg.Drives[0].SelectLine = 64
	if _, err := NewEngine(cfg, []ShiftChain{newFakeChain(64)}, nil); err != ErrLineRange {
		t.Errorf("got %v, want ErrLineRange", err)
	}
}

func BenchmarkTick(b *testing.B) {
	e, chain := newTestEngine(b, testConfig(8, 154, 50000))
	chain.record = false
	e.Dispatch(protocol.NoteOn(protocol.Broadcast(), 440000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Tick()
	}
}
