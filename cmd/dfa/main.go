/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee DFA engine. Provides
comprehensive command-line options, configuration management, and beautiful
user interface for controlling fault acquisition with advanced logging
capabilities.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/akaylee-dfa/cmd/dfa/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool

	// Target configuration
	targetBin  string
	targetData string
	goldenFile string

	// Input configuration
	inputHex  string
	blockSize int
	decrypt   bool

	// Search configuration
	maxLeaf     int
	minLeaf     int
	minLeafNail int
	rangeSpec   string
	replayLog   string
	fromRight   bool
	depthFirst  bool

	// Fault budget configuration
	faultMasks      []string
	randomFaults    int
	minFaultsPerCol int

	// Timing configuration
	calibrationTimeout time.Duration
	timeoutFactor      float64

	// Output configuration
	traceFormat string
	outputDir   string
	runLogPath  string

	// Spawn configuration
	shell         bool
	tolerateError bool
	verbosity     int

	// Logging configuration
	logDir      string
	logFormat   string
	logMaxFiles int
	logMaxSize  int64
	logCompress bool

	dryRun bool
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "akaylee-dfa",
		Short: "Akaylee DFA - Differential fault analysis acquisition engine",
		Long: `Akaylee DFA is a sophisticated fault acquisition engine for whitebox cipher
implementations. It corrupts a target's embedded data table byte range by byte
range, narrows in on the minimal windows whose corruption yields exploitable
faulty outputs, and records the (input, output) trace pairs that downstream
key-recovery tooling consumes.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")

	// Add logging-specific flags
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "./logs", "Log output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "hunt", "Log format (text, json, custom, hunt)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	rootCmd.PersistentFlags().BoolVar(&logCompress, "log-compress", false, "Compress rotated log files")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))
	viper.BindPFlag("log_compress", rootCmd.PersistentFlags().Lookup("log-compress"))

	// Add hunt command
	huntCmd := &cobra.Command{
		Use:   "hunt",
		Short: "Hunt for exploitable fault windows in a whitebox target",
		Long: `Run the full acquisition: calibrate against the pristine table, then corrupt
address ranges recursively until the minimal byte windows producing exploitable
faults are found and enough trace pairs are confirmed per cipher column.`,
		RunE: commands.RunHunt,
	}

	// Add hunt command flags
	huntCmd.Flags().StringVar(&targetBin, "target", "", "Path to target binary (required)")
	huntCmd.Flags().StringVar(&targetData, "data", "", "Path to the data file the target reads, may equal the binary (required)")
	huntCmd.Flags().StringVar(&goldenFile, "golden", "", "Path to the pristine copy of the data file (required)")

	huntCmd.Flags().StringVar(&inputHex, "input", "", "Reference input block as hex (default: repeated 'test' pattern)")
	huntCmd.Flags().IntVar(&blockSize, "block-size", 16, "Cipher block size in bytes")
	huntCmd.Flags().BoolVar(&decrypt, "decrypt", false, "Target runs the inverse cipher")

	huntCmd.Flags().IntVar(&maxLeaf, "max-leaf", 256*256, "Largest range faulted as a single unit")
	huntCmd.Flags().IntVar(&minLeaf, "min-leaf", 64, "Smallest range still subdivided during discovery")
	huntCmd.Flags().IntVar(&minLeafNail, "min-leaf-nail", 8, "Smallest range still subdivided during nailing")
	huntCmd.Flags().StringVar(&rangeSpec, "range", "", "Address window to search as start:end (hex or decimal)")
	huntCmd.Flags().StringVar(&replayLog, "replay", "", "Prior run log whose ranges are replayed verbatim")
	huntCmd.Flags().BoolVar(&fromRight, "from-right", false, "Explore from the high end of the address space first")
	huntCmd.Flags().BoolVar(&depthFirst, "depth-first", false, "Recurse into re-split ranges instead of re-queueing them")

	huntCmd.Flags().StringSliceVar(&faultMasks, "faults", []string{}, "Ordered XOR masks to try per location (e.g. 0xff,0x0f)")
	huntCmd.Flags().IntVar(&randomFaults, "random-faults", 4, "Random masks per location when --faults is empty")
	huntCmd.Flags().IntVar(&minFaultsPerCol, "min-faults-per-column", 4, "Confirmed faults required per column before stopping")

	huntCmd.Flags().DurationVar(&calibrationTimeout, "calibration-timeout", 10*time.Second, "Timeout for the golden run")
	huntCmd.Flags().Float64Var(&timeoutFactor, "timeout-factor", 2.0, "Per-trial timeout as a multiple of the golden run")

	huntCmd.Flags().StringVar(&traceFormat, "trace-format", "default", "Trace serialization format (default, trs)")
	huntCmd.Flags().StringVar(&outputDir, "output", "", "Directory for trace files (default: working directory)")
	huntCmd.Flags().StringVar(&runLogPath, "run-log", "", "Run log path (default: derived from target and timestamp)")

	huntCmd.Flags().BoolVar(&shell, "shell", false, "Run the target command line through /bin/bash -c")
	huntCmd.Flags().BoolVar(&tolerateError, "tolerate-error", false, "Accept nonzero target exits that still produce output")
	huntCmd.Flags().IntVar(&verbosity, "verbosity", 1, "Trial reporting verbosity (0-3)")

	// Add dry-run flag
	huntCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit without hunting")

	// Mark required flags
	huntCmd.MarkFlagRequired("target")
	huntCmd.MarkFlagRequired("data")
	huntCmd.MarkFlagRequired("golden")

	// Range and replay sources are exclusive ways to seed the work tree
	huntCmd.MarkFlagsMutuallyExclusive("range", "replay")

	// Bind flags to viper
	viper.BindPFlag("target_bin", huntCmd.Flags().Lookup("target"))
	viper.BindPFlag("target_data", huntCmd.Flags().Lookup("data"))
	viper.BindPFlag("golden_file", huntCmd.Flags().Lookup("golden"))
	viper.BindPFlag("input_hex", huntCmd.Flags().Lookup("input"))
	viper.BindPFlag("block_size", huntCmd.Flags().Lookup("block-size"))
	viper.BindPFlag("decrypt", huntCmd.Flags().Lookup("decrypt"))
	viper.BindPFlag("max_leaf", huntCmd.Flags().Lookup("max-leaf"))
	viper.BindPFlag("min_leaf", huntCmd.Flags().Lookup("min-leaf"))
	viper.BindPFlag("min_leaf_nail", huntCmd.Flags().Lookup("min-leaf-nail"))
	viper.BindPFlag("range_spec", huntCmd.Flags().Lookup("range"))
	viper.BindPFlag("replay_log", huntCmd.Flags().Lookup("replay"))
	viper.BindPFlag("from_right", huntCmd.Flags().Lookup("from-right"))
	viper.BindPFlag("depth_first", huntCmd.Flags().Lookup("depth-first"))
	viper.BindPFlag("fault_masks", huntCmd.Flags().Lookup("faults"))
	viper.BindPFlag("random_faults", huntCmd.Flags().Lookup("random-faults"))
	viper.BindPFlag("min_faults_per_column", huntCmd.Flags().Lookup("min-faults-per-column"))
	viper.BindPFlag("calibration_timeout", huntCmd.Flags().Lookup("calibration-timeout"))
	viper.BindPFlag("timeout_factor", huntCmd.Flags().Lookup("timeout-factor"))
	viper.BindPFlag("trace_format", huntCmd.Flags().Lookup("trace-format"))
	viper.BindPFlag("output_dir", huntCmd.Flags().Lookup("output"))
	viper.BindPFlag("run_log", huntCmd.Flags().Lookup("run-log"))
	viper.BindPFlag("shell", huntCmd.Flags().Lookup("shell"))
	viper.BindPFlag("tolerate_error", huntCmd.Flags().Lookup("tolerate-error"))
	viper.BindPFlag("verbosity", huntCmd.Flags().Lookup("verbosity"))
	viper.BindPFlag("dry_run", huntCmd.Flags().Lookup("dry-run"))

	// Add calibrate command
	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run the target once against the pristine table",
		Long: `Validate the acquisition setup without faulting anything. Runs the target
against the pristine data table, reports the golden output and the adaptive
per-trial timeout that a hunt would use. Very useful before long sessions.`,
		RunE: commands.RunCalibrate,
	}

	// Add calibrate flags
	calibrateCmd.Flags().StringVar(&targetBin, "target", "", "Path to target binary (required)")
	calibrateCmd.Flags().StringVar(&targetData, "data", "", "Path to the data file the target reads (required)")
	calibrateCmd.Flags().StringVar(&goldenFile, "golden", "", "Path to the pristine copy of the data file (required)")
	calibrateCmd.Flags().StringVar(&inputHex, "input", "", "Reference input block as hex")
	calibrateCmd.Flags().IntVar(&blockSize, "block-size", 16, "Cipher block size in bytes")
	calibrateCmd.Flags().DurationVar(&calibrationTimeout, "calibration-timeout", 10*time.Second, "Timeout for the golden run")
	calibrateCmd.Flags().Float64Var(&timeoutFactor, "timeout-factor", 2.0, "Per-trial timeout as a multiple of the golden run")
	calibrateCmd.Flags().BoolVar(&shell, "shell", false, "Run the target command line through /bin/bash -c")
	calibrateCmd.Flags().BoolVar(&tolerateError, "tolerate-error", false, "Accept nonzero target exits that still produce output")

	// Mark required flags
	calibrateCmd.MarkFlagRequired("target")
	calibrateCmd.MarkFlagRequired("data")
	calibrateCmd.MarkFlagRequired("golden")

	// Bind flags to viper
	viper.BindPFlag("target_bin", calibrateCmd.Flags().Lookup("target"))
	viper.BindPFlag("target_data", calibrateCmd.Flags().Lookup("data"))
	viper.BindPFlag("golden_file", calibrateCmd.Flags().Lookup("golden"))
	viper.BindPFlag("input_hex", calibrateCmd.Flags().Lookup("input"))
	viper.BindPFlag("block_size", calibrateCmd.Flags().Lookup("block-size"))
	viper.BindPFlag("calibration_timeout", calibrateCmd.Flags().Lookup("calibration-timeout"))
	viper.BindPFlag("timeout_factor", calibrateCmd.Flags().Lookup("timeout-factor"))
	viper.BindPFlag("shell", calibrateCmd.Flags().Lookup("shell"))
	viper.BindPFlag("tolerate_error", calibrateCmd.Flags().Lookup("tolerate-error"))

	rootCmd.AddCommand(calibrateCmd)

	// Add logs command for session log management
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and manage hunt session logs",
		Long: `Summarize retained session logs: trial, nailing and confirmation counts,
log level distribution, and retention statistics. Optionally rotates oversized
files and prunes old sessions according to the retention policy.`,
		RunE: commands.RunLogs,
	}

	// Add logs flags
	logsCmd.Flags().Bool("rotate", false, "Rotate oversized log files")
	logsCmd.Flags().Bool("cleanup", false, "Prune old log files beyond the retention limit")

	viper.BindPFlag("logs_rotate", logsCmd.Flags().Lookup("rotate"))
	viper.BindPFlag("logs_cleanup", logsCmd.Flags().Lookup("cleanup"))

	rootCmd.AddCommand(logsCmd)

	// Add commands to root
	rootCmd.AddCommand(huntCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
