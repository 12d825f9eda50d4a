/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger_test.go
Description: Tests for the hunt logging system. Verifies configuration
validation, timestamped file output, hunt-specific formatting, retention
management, and analysis of session logs.
*/

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a logger config writing plain text into dir.
func newTestConfig(dir string) *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelDebug,
		Format:    LogFormatText,
		OutputDir: dir,
		MaxFiles:  10,
		MaxSize:   10 * 1024 * 1024,
		Timestamp: true,
		Caller:    false,
		Colors:    false,
	}
}

// TestLoggerConfigValidate tests the configuration validation rules.
func TestLoggerConfigValidate(t *testing.T) {
	valid := newTestConfig(t.TempDir())
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*LoggerConfig)
	}{
		{"empty output dir", func(c *LoggerConfig) { c.OutputDir = "" }},
		{"zero max files", func(c *LoggerConfig) { c.MaxFiles = 0 }},
		{"zero max size", func(c *LoggerConfig) { c.MaxSize = 0 }},
		{"unknown format", func(c *LoggerConfig) { c.Format = "xml" }},
		{"unknown level", func(c *LoggerConfig) { c.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t.TempDir())
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

// TestLoggerWritesTimestampedFile tests that the logger creates a session
// file and mirrors messages into it.
func TestLoggerWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(newTestConfig(dir))
	require.NoError(t, err)

	logger.GetLogger().Info("hunting for windows")
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, "akaylee-dfa_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "logging system initialized")
	assert.Contains(t, string(content), "hunting for windows")
}

// TestLoggerHuntFormat tests that the hunt format is accepted and applied.
func TestLoggerHuntFormat(t *testing.T) {
	config := newTestConfig(t.TempDir())
	config.Format = LogFormatHunt
	require.NoError(t, config.Validate())

	logger, err := NewLogger(config)
	require.NoError(t, err)
	defer logger.Close()

	_, ok := logger.GetLogger().Formatter.(*HuntFormatter)
	assert.True(t, ok)
}

// TestLoggerDomainMethods tests the hunt-specific logging helpers.
func TestLoggerDomainMethods(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(newTestConfig(dir))
	require.NoError(t, err)

	logger.LogSessionStart("4f2c", "./wb_target", "./wb_table.bin", nil)
	logger.LogCalibration("aabbccdd", 50*time.Millisecond, 100*time.Millisecond, nil)
	logger.LogHuntStats(map[string]interface{}{"trials": 12})
	logger.LogTraceDump(dir, map[string]int{"enc": 3, "dec": 0}, nil)
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, "akaylee-dfa_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Hunt session started")
	assert.Contains(t, string(content), "Golden run calibrated")
	assert.Contains(t, string(content), "Hunt statistics update")
	assert.Contains(t, string(content), "Trace pairs dumped")
}

// TestHuntFormatterPrefixes tests the event prefixes derived from messages.
func TestHuntFormatterPrefixes(t *testing.T) {
	formatter := &HuntFormatter{}

	tests := []struct {
		message string
		prefix  string
	}{
		{"Lvl 003 [0x00000000-0x00000010[ ^0xFF 74657374 -> Crash", "TRIAL"},
		{"Lvl 000 [0x00000005-0x00000006[ ^0x42 74657374 -> 01020304 GoodEncFault Column:0 Logged", "CONFIRM"},
		{"Nailing [0x00000010-0x00000020[", "NAIL"},
		{"Golden run calibrated", "CALIB"},
		{"Hunt statistics update", "STATS"},
		{"Trace pairs dumped", "TRACES"},
		{"Engine initialized", "ENGINE"},
		{"something else entirely", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.prefix, formatter.getHuntPrefix(tt.message), tt.message)
	}
}

// TestHuntFormatterOutput tests the rendered entry layout and field display.
func TestHuntFormatterOutput(t *testing.T) {
	formatter := &HuntFormatter{
		CustomFormatter: CustomFormatter{Timestamp: false, Colors: false},
	}

	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "Golden run calibrated",
		Data: logrus.Fields{
			"baseline": 50 * time.Millisecond,
		},
	}

	out, err := formatter.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "INFO [CALIB] Golden run calibrated")
	assert.Contains(t, line, "baseline=50ms")
}

// TestCustomFormatterValues tests truncation and byte rendering of fields.
func TestCustomFormatterValues(t *testing.T) {
	formatter := &CustomFormatter{}

	long := make([]byte, 32)
	assert.Equal(t, "[32 bytes]", formatter.formatValue(long))
	assert.Equal(t, "0102", formatter.formatValue([]byte{0x01, 0x02}))
	assert.Equal(t, "1.5s", formatter.formatValue(1500*time.Millisecond))
}

// TestLogManagerCleanup tests that the retention policy keeps only the
// newest files.
func TestLogManagerCleanup(t *testing.T) {
	dir := t.TempDir()

	base := time.Now().Add(-time.Hour)
	names := []string{"akaylee-dfa_a.log", "akaylee-dfa_b.log", "akaylee-dfa_c.log", "akaylee-dfa_d.log"}
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		stamp := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}

	manager := NewLogManager(dir, 2, 1024, false)
	require.NoError(t, manager.CleanupOldLogs())

	files, err := filepath.Glob(filepath.Join(dir, "akaylee-dfa_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Contains(t, files, filepath.Join(dir, "akaylee-dfa_c.log"))
	assert.Contains(t, files, filepath.Join(dir, "akaylee-dfa_d.log"))
}

// TestLogManagerRotateCompress tests size-based rotation with compression.
func TestLogManagerRotateCompress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "akaylee-dfa_big.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))

	manager := NewLogManager(dir, 10, 1024, true)
	require.NoError(t, manager.RotateLogs())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	rotated, err := filepath.Glob(filepath.Join(dir, "akaylee-dfa_big.log.*.gz"))
	require.NoError(t, err)
	assert.Len(t, rotated, 1)
}

// TestLogManagerStats tests aggregate statistics over retained files.
func TestLogManagerStats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "akaylee-dfa_a.log"), []byte("abcd"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "akaylee-dfa_b.log.gz"), []byte("zz"), 0644))

	manager := NewLogManager(dir, 10, 1024, false)
	stats, err := manager.GetLogStats()
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, int64(6), stats.TotalSize)
	assert.Equal(t, 1, stats.CompressedFiles)
	assert.Equal(t, 1, stats.UncompressedFiles)
}

// TestLogAnalyzer tests event counting over a hunt session log.
func TestLogAnalyzer(t *testing.T) {
	dir := t.TempDir()

	lines := "" +
		"INFO Akaylee DFA logging system initialized\n" +
		"DEBUG Lvl 000 [0x00000000-0x00000100[ ^0xFF 74657374 -> Crash\n" +
		"DEBUG Lvl 001 [0x00000000-0x00000080[ ^0xFF 74657374 -> 11223344 MinorFault\n" +
		"DEBUG Nailing [0x00000010-0x00000020[\n" +
		"INFO Lvl 002 [0x00000015-0x00000016[ ^0xFF 74657374 -> 55667788 GoodEncFault Column:2 Logged\n" +
		"INFO Golden run calibrated\n" +
		"INFO Hunt statistics update\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "akaylee-dfa_s1.log"), []byte(lines), 0644))

	analyzer := NewLogAnalyzer(dir)
	analysis, err := analyzer.AnalyzeLogs()
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.LogFiles)
	assert.Equal(t, int64(7), analysis.TotalLines)
	assert.Equal(t, int64(3), analysis.DebugCount)
	assert.Equal(t, int64(4), analysis.InfoCount)
	assert.Equal(t, int64(2), analysis.TrialCount)
	assert.Equal(t, int64(1), analysis.NailingCount)
	assert.Equal(t, int64(1), analysis.ConfirmedCount)
	assert.Equal(t, int64(1), analysis.CalibrationCount)
	assert.Equal(t, int64(1), analysis.StatsCount)

	summary := analysis.GetLogSummary()
	assert.Contains(t, summary, "Trials: 2")
	assert.Contains(t, summary, "Confirmations: 1")
}
