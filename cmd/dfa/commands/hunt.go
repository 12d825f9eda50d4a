/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: hunt.go
Description: Hunt command implementation for the Akaylee DFA engine. Handles
the full acquisition process with comprehensive configuration, calibration,
signal-driven abort and trace dumping, and real-time statistics reporting.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-dfa/pkg/analysis"
	"github.com/kleascm/akaylee-dfa/pkg/codec"
	"github.com/kleascm/akaylee-dfa/pkg/core"
	"github.com/kleascm/akaylee-dfa/pkg/execution"
	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
	"github.com/kleascm/akaylee-dfa/pkg/logging"
	"github.com/kleascm/akaylee-dfa/pkg/strategies"
	"github.com/kleascm/akaylee-dfa/pkg/utils"
)

// huntSummary is the machine-readable session record written at hunt end
type huntSummary struct {
	SessionID    string                 `json:"session_id"`
	TargetBin    string                 `json:"target_bin"`
	TargetData   string                 `json:"target_data"`
	Complete     bool                   `json:"complete"`
	GoldenOutput string                 `json:"golden_output"`
	EncTraces    int                    `json:"enc_traces"`
	DecTraces    int                    `json:"dec_traces"`
	Stats        map[string]interface{} `json:"stats"`
}

// RunHunt executes the full acquisition process
func RunHunt(cmd *cobra.Command, args []string) error {
	fmt.Println("🎯 Akaylee DFA - Starting Acquisition Session")
	fmt.Println("=============================================")
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

	// Perform dry run if requested
	if viper.GetBool("dry_run") {
		return performDryRun(config)
	}

	// Validate configuration
	if err := validateHuntConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Create session logger
	sessionLog, err := buildLogger()
	if err != nil {
		return fmt.Errorf("failed to create session logger: %w", err)
	}
	defer sessionLog.Close()

	// Create acquisition engine
	engine := core.NewEngine()

	// Set up components
	executor, err := setupHuntComponents(engine, config, sessionLog)
	if err != nil {
		return fmt.Errorf("failed to setup hunt components: %w", err)
	}

	// Initialize engine
	if err := engine.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	sessionLog.LogSessionStart(engine.SessionID(), config.TargetBin, config.TargetData, nil)

	// Calibrate before anything gets corrupted
	if err := engine.Calibrate(); err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	trialTimeout := executor.Timeout()
	baseline := time.Duration(float64(trialTimeout) / config.TimeoutFactor)
	sessionLog.LogCalibration(engine.GoldenOutput().Hex(), baseline, trialTimeout, nil)
	fmt.Printf("📏 Golden output: %s (run %v, trial timeout %v)\n\n",
		engine.GoldenOutput().Hex(), baseline, trialTimeout)

	// Set up signal handling: interrupts abort the hunt at the next trial
	// boundary, SIGUSR1 dumps the traces collected so far
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if sig == syscall.SIGUSR1 {
					fmt.Println("\n💾 Dumping traces collected so far...")
					engine.DumpTraces()
					enc, dec := engine.TraceCounts()
					sessionLog.LogTraceDump(config.OutputDir, map[string]int{"enc_traces": enc, "dec_traces": dec}, nil)
					continue
				}
				fmt.Println("\n🛑 Received shutdown signal, aborting hunt...")
				engine.Abort()
			}
		}
	}()

	// Start statistics reporting
	go reportHuntStats(ctx, engine)

	// Run the hunt
	complete, err := engine.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("hunt failed: %w", err)
	}

	// Print final statistics
	printFinalHuntStats(engine, complete)
	sessionLog.LogHuntStats(engine.Stats().Snapshot())

	// Persist a machine-readable session record next to the trace files
	encCount, decCount := engine.TraceCounts()
	summary := huntSummary{
		SessionID:    engine.SessionID(),
		TargetBin:    config.TargetBin,
		TargetData:   config.TargetData,
		Complete:     complete,
		GoldenOutput: engine.GoldenOutput().Hex(),
		EncTraces:    encCount,
		DecTraces:    decCount,
		Stats:        engine.Stats().Snapshot(),
	}
	if path, err := utils.WriteSessionSummary(config.OutputDir, engine.SessionID(), summary); err != nil {
		sessionLog.GetLogger().WithError(err).Warn("Failed to write session summary")
	} else {
		fmt.Printf("📊 Session summary saved to %s\n", path)
	}

	if complete {
		fmt.Println("\n✨ Acquisition session completed!")
	} else {
		fmt.Println("\n⚠️  Hunt ended before every column was covered; traces were saved anyway.")
	}
	return nil
}

// setupHuntComponents configures all acquisition components
func setupHuntComponents(engine *core.Engine, config *interfaces.Config, sessionLog *logging.Logger) (*execution.ProcessExecutor, error) {
	log := sessionLog.GetLogger()

	// Create fault checker
	checker := analysis.NewAESChecker()
	checker.SetDecrypt(viper.GetBool("decrypt"))
	engine.SetChecker(checker)

	// Resolve the reference input once; executor and engine must agree on it
	input, err := resolveInput(config)
	if err != nil {
		return nil, err
	}
	engine.SetInput(input)

	// Create executor
	executor := execution.NewProcessExecutor(codec.NewHexDecoder(), checker, log)
	if err := executor.Initialize(config, input, codec.NewHexEncoder()); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}
	engine.SetExecutor(executor)

	// Create injector
	engine.SetInjector(strategies.NewXORInjector())

	// Wire telemetry through the session logger
	engine.SetLogger(log)
	engine.SetReporter(core.NewLoggerReporter(log))

	return executor, nil
}

// createHuntConfig creates the hunt configuration from viper
func createHuntConfig() (*interfaces.Config, error) {
	masks, err := parseFaultMasks(viper.GetStringSlice("fault_masks"))
	if err != nil {
		return nil, err
	}

	return &interfaces.Config{
		TargetBin:  viper.GetString("target_bin"),
		TargetData: viper.GetString("target_data"),
		GoldenFile: viper.GetString("golden_file"),
		InputHex:   viper.GetString("input_hex"),
		BlockSize:  viper.GetInt("block_size"),

		MaxLeaf:     viper.GetInt("max_leaf"),
		MinLeaf:     viper.GetInt("min_leaf"),
		MinLeafNail: viper.GetInt("min_leaf_nail"),

		RangeSpec: viper.GetString("range_spec"),
		ReplayLog: viper.GetString("replay_log"),

		FromLeft:   !viper.GetBool("from_right"),
		DepthFirst: viper.GetBool("depth_first"),

		FaultMasks:   masks,
		RandomFaults: viper.GetInt("random_faults"),

		MinFaultsPerColumn: viper.GetInt("min_faults_per_column"),

		CalibrationTimeout: viper.GetDuration("calibration_timeout"),
		TimeoutFactor:      viper.GetFloat64("timeout_factor"),

		TraceFormat: viper.GetString("trace_format"),
		OutputDir:   viper.GetString("output_dir"),
		RunLog:      viper.GetString("run_log"),

		Shell:         viper.GetBool("shell"),
		TolerateError: viper.GetBool("tolerate_error"),
		Verbosity:     viper.GetInt("verbosity"),

		LogLevel: viper.GetString("log_level"),
		JSONLogs: viper.GetBool("json_logs"),
	}, nil
}

// validateHuntConfig validates the hunt configuration
func validateHuntConfig(config *interfaces.Config) error {
	if config.TargetBin == "" {
		return fmt.Errorf("target binary is required")
	}
	if config.TargetData == "" {
		return fmt.Errorf("target data file is required")
	}
	if config.GoldenFile == "" {
		return fmt.Errorf("golden table is required")
	}

	if _, err := os.Stat(config.TargetBin); os.IsNotExist(err) {
		return fmt.Errorf("target binary not found: %s", config.TargetBin)
	}
	if _, err := os.Stat(config.TargetData); os.IsNotExist(err) {
		return fmt.Errorf("target data file not found: %s", config.TargetData)
	}
	if _, err := os.Stat(config.GoldenFile); os.IsNotExist(err) {
		return fmt.Errorf("golden table not found: %s", config.GoldenFile)
	}

	if config.BlockSize != analysis.AESBlockSize {
		return fmt.Errorf("no built-in fault checker for %d byte blocks; drive the engine through the library API with your own checker", config.BlockSize)
	}

	return nil
}

// reportHuntStats periodically reports hunt statistics
func reportHuntStats(ctx context.Context, engine *core.Engine) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := engine.Stats().Snapshot()
			fmt.Printf("\r🔄 Trials: %d | Confirmed: %d | Crashes: %d | Loops: %d | Rate: %.1f/sec",
				stats["trials"], stats["confirmed"], stats["crashes"], stats["loops"], stats["trials_per_second"])
		}
	}
}

// printFinalHuntStats prints comprehensive final statistics
func printFinalHuntStats(engine *core.Engine, complete bool) {
	stats := engine.Stats()
	snapshot := stats.Snapshot()
	duration := time.Since(stats.StartTime)
	enc, dec := engine.TraceCounts()

	fmt.Println("\n\n📊 Final Statistics")
	fmt.Println("==================")
	fmt.Printf("Total Runtime: %v\n", duration)
	fmt.Printf("Total Trials: %d\n", snapshot["trials"])
	fmt.Printf("No Faults: %d\n", snapshot["no_faults"])
	fmt.Printf("Minor Faults: %d\n", snapshot["minor_faults"])
	fmt.Printf("Major Faults: %d\n", snapshot["major_faults"])
	fmt.Printf("Exploitable Enc Faults: %d\n", snapshot["good_enc_faults"])
	fmt.Printf("Exploitable Dec Faults: %d\n", snapshot["good_dec_faults"])
	fmt.Printf("Loops: %d\n", snapshot["loops"])
	fmt.Printf("Crashes: %d\n", snapshot["crashes"])
	fmt.Printf("Confirmed Pairs: %d\n", snapshot["confirmed"])
	fmt.Printf("Deepest Level: %d\n", snapshot["max_level"])
	fmt.Printf("Average Rate: %.1f trials/sec\n", float64(stats.Trials)/duration.Seconds())
	fmt.Printf("Trace Pairs: %d encryption, %d decryption\n", enc, dec)
	fmt.Printf("Column Coverage Complete: %v\n", complete)
}

// performDryRun validates configuration without starting the hunt
func performDryRun(config *interfaces.Config) error {
	fmt.Println("🔍 Performing dry run validation...")

	if err := validateHuntConfig(config); err != nil {
		return err
	}
	fmt.Println("✅ Target, data file and golden table exist")

	dataInfo, err := os.Stat(config.TargetData)
	if err != nil {
		return fmt.Errorf("failed to stat target data file: %w", err)
	}
	goldenInfo, err := os.Stat(config.GoldenFile)
	if err != nil {
		return fmt.Errorf("failed to stat golden table: %w", err)
	}
	if dataInfo.Size() == goldenInfo.Size() {
		fmt.Printf("✅ Golden table matches data file size (%d bytes)\n", goldenInfo.Size())
	} else {
		fmt.Printf("⚠️  Golden table is %d bytes but data file is %d bytes\n", goldenInfo.Size(), dataInfo.Size())
	}

	if len(config.FaultMasks) > 0 {
		fmt.Printf("✅ Fault budget: %d fixed masks per location\n", len(config.FaultMasks))
	} else {
		fmt.Printf("✅ Fault budget: %d random masks per location\n", config.RandomFaults)
	}

	traversal := "breadth-first"
	if config.DepthFirst {
		traversal = "depth-first"
	}
	side := "left"
	if !config.FromLeft {
		side = "right"
	}
	fmt.Printf("✅ Traversal: %s from the %s, leaves %d..%d bytes (nailing down to %d)\n",
		traversal, side, config.MinLeaf, config.MaxLeaf, config.MinLeafNail)

	fmt.Println("\n✨ Dry run complete - configuration is valid!")
	return nil
}
