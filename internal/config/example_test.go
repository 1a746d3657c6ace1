package config_test

import (
	"fmt"
	"time"

	"github.com/lastwords/lastwords/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Grace Delay:", cfg.Detector.GraceDelay)
	fmt.Println("Shutdown Timeout:", cfg.Detector.ShutdownTimeout)
	// Output:
	// Grace Delay: 5s
	// Shutdown Timeout: 500ms
}

// Example of setting the grace delay with validation
func ExampleConfig_SetGraceDelay() {
	cfg := config.Default()

	// Valid delay
	if err := cfg.SetGraceDelay(2 * time.Second); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Grace delay set to:", cfg.GraceDelay())
	}

	// Invalid delay (too high)
	if err := cfg.SetGraceDelay(time.Hour); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Grace delay set to: 2s
	// Error: grace delay cannot be greater than 5m0s
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	cfg.Terminate.Mode = config.TerminateSignal
	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	}

	// Output:
	// Configuration is valid
	// Invalid config: terminate mode "signal" requires an x11 pid
}
