package core

import (
	"testing"

	"floppier/protocol"
)

func TestHomeSweep(t *testing.T) {
	cfg := testConfig(2, 10, 10000)
	cfg.Drives[1].MaxPosition = 6
	e, chain := newTestEngine(t, cfg)
	start := chain.writes

	var slept []uint32
	if err := e.Home(func(us uint32) { slept = append(slept, us) }); err != nil {
		t.Fatalf("Home: %v", err)
	}

	// select+direction, one flush per step of the longest drive, then idle
	if got := chain.writes - start; got != 1+10+1 {
		t.Errorf("%d flushes, want 12", got)
	}
	if len(slept) != 10 || slept[0] != cfg.HomeStepDelayUS {
		t.Errorf("slept %v", slept)
	}

	sweep := chain.history[start:]
	first := sweep[0][0]
	if first&(1<<2) != 0 || first&(1<<10) != 0 {
		t.Error("drives not selected during homing")
	}
	if first&(1<<1) == 0 || first&(1<<9) == 0 {
		t.Error("drives not pointed in reverse during homing")
	}

	toggles := [2]int{}
	for i := 1; i < len(sweep)-1; i++ {
		for k, line := range []uint32{0, 8} {
			if (sweep[i][0]^sweep[i-1][0])&(1<<line) != 0 {
				toggles[k]++
			}
		}
	}
	if toggles != [2]int{10, 6} {
		t.Errorf("step toggles %v, want [10 6]", toggles)
	}

	final := chain.latched[0]
	if final != 1<<2|1<<10 {
		t.Errorf("final image %08X, want selects released only", final)
	}
	for addr := uint8(0); addr < 2; addr++ {
		st, _ := e.Status(addr)
		if st.Position != 0 || st.Direction != Forward || st.Active {
			t.Errorf("drive %d after homing: %+v", addr, st)
		}
	}

	e.Dispatch(protocol.NoteOn(protocol.Single(0), 440000))
	for i := 0; i < 11; i++ {
		e.Tick()
	}
	if st, _ := e.Status(0); st.Position != 1 {
		t.Errorf("first step after homing reached %d", st.Position)
	}
}

func TestHomeRefusedWhileTicking(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(1, 10, 10000))
	e.TickTimer(0)
	if err := e.Home(func(uint32) {}); err != ErrBusy {
		t.Errorf("Home while ticking: %v", err)
	}
}
