package main

import (
	"os"
	"testing"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
)

func TestThatShutdownOnSignalCleansUpBeforeExiting(t *testing.T) {
	signals := make(chan os.Signal, 1)
	signals <- os.Interrupt

	steps := []string{}
	exitCode := -1

	shutdownOnSignal(signals, logging.NewLogger(),
		func() { steps = append(steps, "cleanup") },
		func(code int) {
			steps = append(steps, "exit")
			exitCode = code
		})

	if len(steps) != 2 || steps[0] != "cleanup" || steps[1] != "exit" {
		t.Errorf("expected cleanup to run before exit, got %v", steps)
	}

	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}
