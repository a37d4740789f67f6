package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sbtinstruments/cyto/internal/config"
	"github.com/sbtinstruments/cyto/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View tree logs",
	Long: `View and filter the structured logs written by cyto trees.

By default, reads the log file from the logging configuration. Use
flags to filter and format the output.

Examples:
  # Show last 50 lines
  cyto logs

  # Show all logs for a specific tree
  cyto logs --tree abc123 -n 0

  # Follow logs in real-time
  cyto logs -f

  # Filter by log level
  cyto logs --level warn

  # Show logs from the last hour
  cyto logs --since 1h

  # Search for specific patterns
  cyto logs --grep "failed|cancel"

  # Export filtered logs to CSV
  cyto logs --tree abc123 --export out.csv --format csv`,
	RunE: runLogs,
}

var (
	logsFile       string
	logsTreeID     string
	logsNodeID     string
	logsTail       int
	logsFollow     bool
	logsLevel      string
	logsSince      string
	logsGrep       string
	logsExportPath string
	logsFormat     string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read (default: logging.file from config)")
	logsCmd.Flags().StringVar(&logsTreeID, "tree", "", "Filter by tree ID")
	logsCmd.Flags().StringVar(&logsNodeID, "node", "", "Filter by node ID")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsExportPath, "export", "", "Export matching entries to a file instead of printing")
	logsCmd.Flags().StringVar(&logsFormat, "format", "json", "Export format (json/text/csv)")
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry logging.LogEntry) string {
	var sb strings.Builder

	// Timestamp
	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Level with color
	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Message
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	// Context fields
	for _, kv := range [][2]string{
		{"tree_id", entry.TreeID},
		{"node_id", entry.NodeID},
		{"component", entry.Component},
	} {
		if kv[1] == "" {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(kv[0])
		sb.WriteString("=")
		sb.WriteString(kv[1])
		sb.WriteString(colorReset)
	}

	// Extra fields
	for key, value := range entry.Attrs {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", value))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := logsFile
	if logPath == "" {
		logPath = config.Get().Logging.File
	}
	if logPath == "" {
		return fmt.Errorf("no log file configured; set logging.file or pass --file")
	}

	filter, grepRegex, err := buildLogFilter()
	if err != nil {
		return err
	}

	// Follow mode
	if logsFollow {
		return followLogs(logPath, filter, grepRegex)
	}

	entries, err := logging.ReadLogFile(logPath)
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if grepRegex != nil {
		entries = grepEntries(entries, grepRegex)
	}

	// Export mode
	if logsExportPath != "" {
		if err := logging.ExportLogEntries(entries, logsExportPath, logsFormat); err != nil {
			return err
		}
		fmt.Printf("Exported %d entries to %s\n", len(entries), logsExportPath)
		return nil
	}

	// Apply tail limit
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	for _, entry := range entries {
		fmt.Println(formatLogEntry(entry))
	}

	if len(entries) == 0 {
		fmt.Println("No matching log entries found.")
	}

	return nil
}

// buildLogFilter converts the command flags into a LogFilter plus an
// optional grep regex, which LogFilter does not express.
func buildLogFilter() (logging.LogFilter, *regexp.Regexp, error) {
	filter := logging.LogFilter{
		TreeID: logsTreeID,
		NodeID: logsNodeID,
	}

	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, nil, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	var grepRegex *regexp.Regexp
	if logsGrep != "" {
		var err error
		grepRegex, err = regexp.Compile(logsGrep)
		if err != nil {
			return filter, nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	return filter, grepRegex, nil
}

// grepEntries filters entries whose message or attrs match the regex.
func grepEntries(entries []logging.LogEntry, re *regexp.Regexp) []logging.LogEntry {
	var out []logging.LogEntry
	for _, entry := range entries {
		searchText := entry.Message
		for _, v := range entry.Attrs {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if re.MatchString(searchText) {
			out = append(out, entry)
		}
	}
	return out
}

// followLogs implements tail -f behavior for the log file
func followLogs(logPath string, filter logging.LogFilter, grepRegex *regexp.Regexp) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	_, err = file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Printf("Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parsed := parseFollowLine(line)
		if len(parsed) == 0 {
			// If we can't parse as JSON, display raw line
			fmt.Println(line)
			continue
		}

		matched := logging.FilterLogs(parsed, filter)
		if grepRegex != nil {
			matched = grepEntries(matched, grepRegex)
		}
		for _, entry := range matched {
			fmt.Println(formatLogEntry(entry))
		}
	}
}

// parseFollowLine parses one log line into a single-entry slice, or an
// empty slice if the line is unparsable.
func parseFollowLine(line string) []logging.LogEntry {
	entries, err := logging.ReadLogEntries(strings.NewReader(line))
	if err != nil {
		return nil
	}
	return entries
}
