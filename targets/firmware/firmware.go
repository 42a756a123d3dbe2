//go:build rp2040 || rp2350

// Package firmware is the device main loop shared by the RP2040 and RP2350
// targets: USB bytes in, engine ticking from the alarm interrupt.
package firmware

import (
	_ "embed"
	"machine"
	"time"

	"floppier/config"
	"floppier/core"
	piochain "floppier/targets/pio"
)

//go:embed drives.json
var defaultDrives []byte

// Board holds what differs between boards
type Board struct {
	Name  string
	Debug DebugUART
	LED   machine.Pin
}

// Run never returns. Configuration or hardware errors at boot leave the
// LED blinking the failure code.
func Run(board Board) {
	InitUSB()
	writer := initDebug(board.Debug)
	diag := core.NewDiagnostics(writer)
	diag.Println("=== floppier " + board.Name + " ===")

	cfg, err := config.LoadConfig(defaultDrives)
	if err != nil {
		diag.Println("[BOOT] config: " + err.Error())
		fail(board.LED, 2)
	}

	segments, err := piochain.NewSegments(cfg.Segments)
	diag.Println("[BOOT] state machines: " + piochain.AllocationMap())
	if err != nil {
		diag.Println("[BOOT] segments: " + err.Error())
		fail(board.LED, 3)
	}

	engine, err := core.NewEngine(cfg, segments, diag)
	if err != nil {
		diag.Println("[BOOT] engine: " + err.Error())
		fail(board.LED, 4)
	}
	if err := engine.Start(); err != nil {
		diag.Println("[BOOT] start: " + err.Error())
		fail(board.LED, 5)
	}

	if cfg.HomeOnBoot {
		if err := engine.Home(sleepUS); err != nil {
			diag.Println("[BOOT] home: " + err.Error())
			fail(board.LED, 6)
		}
	}

	StartTick(engine)
	commandLoop(engine, board.LED)
}

// commandLoop feeds USB input to the engine until a hardware fault
func commandLoop(engine *core.Engine, led machine.Pin) {
	var buf [64]byte
	for {
		if n := USBRead(buf[:]); n > 0 {
			engine.Receive(buf[:n])
		}
		if err := engine.Poll(); err != nil {
			fail(led, 7)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func sleepUS(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// fail blinks count pulses forever
func fail(led machine.Pin, count int) {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		for i := 0; i < count; i++ {
			led.High()
			time.Sleep(200 * time.Millisecond)
			led.Low()
			time.Sleep(200 * time.Millisecond)
		}
		time.Sleep(1 * time.Second)
	}
}
