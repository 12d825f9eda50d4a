/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: calibrate.go
Description: Calibrate command implementation for the Akaylee DFA engine.
Runs the target once against the pristine table to validate the setup and
report the golden output and the adaptive timeout a hunt would use.
*/

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kleascm/akaylee-dfa/pkg/analysis"
	"github.com/kleascm/akaylee-dfa/pkg/codec"
	"github.com/kleascm/akaylee-dfa/pkg/execution"
)

// RunCalibrate executes a single golden run and reports the baseline
func RunCalibrate(cmd *cobra.Command, args []string) error {
	fmt.Println("📏 Akaylee DFA - Calibration Run")
	fmt.Println("================================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	if err := SetupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Create hunt configuration
	config, err := createHuntConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate configuration
	if err := validateHuntConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The golden run needs the same executor a hunt would use
	checker := analysis.NewAESChecker()
	executor := execution.NewProcessExecutor(codec.NewHexDecoder(), checker, logrus.StandardLogger())

	input, err := resolveInput(config)
	if err != nil {
		return err
	}
	if err := executor.Initialize(config, input, codec.NewHexEncoder()); err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	golden, err := os.ReadFile(config.GoldenFile)
	if err != nil {
		return fmt.Errorf("failed to read golden table: %w", err)
	}
	if len(golden) == 0 {
		return fmt.Errorf("golden table %s is empty", config.GoldenFile)
	}

	fmt.Printf("🧪 Running %s against the pristine table (%d bytes)...\n", config.TargetBin, len(golden))

	result := executor.Execute(golden)
	if result.Output == nil {
		return fmt.Errorf("golden run produced no decodable output (status %s), check your setup", result.Status)
	}

	trialTimeout := time.Duration(float64(result.Duration) * config.TimeoutFactor)

	fmt.Println("\n✅ Golden run succeeded")
	fmt.Printf("Reference Input: %s\n", input.Hex())
	fmt.Printf("Golden Output: %s\n", result.Output.Hex())
	fmt.Printf("Golden Run Duration: %v\n", result.Duration)
	fmt.Printf("Derived Trial Timeout: %v (factor %.1f)\n", trialTimeout, config.TimeoutFactor)
	fmt.Println("\nThe data file now holds the pristine table and was left in place.")

	fmt.Println("\n✨ Calibration complete - ready to hunt!")
	return nil
}
