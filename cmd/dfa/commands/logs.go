/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logs.go
Description: Logs command implementation for the Akaylee DFA engine. Summarizes
retained hunt session logs, their event counts and retention statistics, and
optionally rotates or prunes them.
*/

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-dfa/pkg/logging"
)

// RunLogs inspects and manages retained hunt session logs
func RunLogs(cmd *cobra.Command, args []string) error {
	fmt.Println("📜 Akaylee DFA - Session Logs")
	fmt.Println("=============================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logDir := viper.GetString("log_dir")
	manager := logging.NewLogManager(
		logDir,
		viper.GetInt("log_max_files"),
		viper.GetInt64("log_max_size"),
		viper.GetBool("log_compress"),
	)

	// Rotate oversized files first so the stats reflect the result
	if viper.GetBool("logs_rotate") {
		if err := manager.RotateLogs(); err != nil {
			return fmt.Errorf("failed to rotate logs: %w", err)
		}
		fmt.Println("🔄 Oversized log files rotated")
	}

	// Prune old sessions beyond the retention limit
	if viper.GetBool("logs_cleanup") {
		if err := manager.CleanupOldLogs(); err != nil {
			return fmt.Errorf("failed to cleanup logs: %w", err)
		}
		fmt.Println("🧹 Old log files pruned")
	}

	stats, err := manager.GetLogStats()
	if err != nil {
		return fmt.Errorf("failed to collect log statistics: %w", err)
	}

	fmt.Printf("Log Directory: %s\n", logDir)
	fmt.Printf("Total Files: %d (%d compressed, %d uncompressed)\n",
		stats.TotalFiles, stats.CompressedFiles, stats.UncompressedFiles)
	fmt.Printf("Total Size: %d bytes\n", stats.TotalSize)
	if stats.TotalFiles > 0 {
		fmt.Printf("Oldest Session: %s\n", stats.OldestFile.Format("2006-01-02 15:04:05"))
		fmt.Printf("Newest Session: %s\n", stats.NewestFile.Format("2006-01-02 15:04:05"))
	}

	analyzer := logging.NewLogAnalyzer(logDir)
	analysis, err := analyzer.AnalyzeLogs()
	if err != nil {
		return fmt.Errorf("failed to analyze logs: %w", err)
	}

	fmt.Println()
	fmt.Println(analysis.GetLogSummary())

	return nil
}
