/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: summary_writer.go
Description: Utility for writing acquisition session summaries to the trace
output directory. Handles timestamped, session-scoped file naming. Ensures
the directory exists and writes indented JSON for easy post-run analysis.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteSessionSummary writes a session summary next to the trace files.
// The filename carries the write timestamp and a session prefix so summaries
// from repeated runs against the same target sort together.
func WriteSessionSummary(outputDir, sessionID string, summary interface{}) (string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("summary_%s_%s.json", timestamp, sessionID)
	filePath := filepath.Join(outputDir, filename)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}

	return filePath, nil
}
