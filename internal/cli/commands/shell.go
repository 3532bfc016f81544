package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/config"
	"github.com/quarrylabs/quarry/pkg/session"
)

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive SQL shell",
		Long: `Start an interactive SQL shell against the session.

SQL statements end with a semicolon. Dot-commands manage datasets; type
.help for the list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			return runShell(cmd, s, cfg)
		},
	}
}

func runShell(cmd *cobra.Command, s *session.Session, cfg *config.Config) error {
	ctx := cmd.Context()

	// History is project-local; scratch sessions keep none.
	historyFile := ""
	if cfg.Project != "" {
		historyFile = filepath.Join(filepath.Dir(cfg.Project), ".quarry_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quarry> ",
		HistoryFile:     historyFile,
		AutoComplete:    newDatasetCompleter(s),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	if cfg.Project != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Quarry shell (project: %s)\n", cfg.Project)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Quarry shell (scratch session)")
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt("quarry> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if strings.HasPrefix(line, ".") {
			if handled := handleDotCommand(ctx, cmd, s, cfg, line); handled {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt("   ...> ")
			continue
		}
		rl.SetPrompt("quarry> ")

		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		if err := runShellQuery(ctx, cmd, s, query, cfg.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func runShellQuery(ctx context.Context, cmd *cobra.Command, s *session.Session, query, format string) error {
	buf, err := s.QueryIPC(ctx, query)
	if err != nil {
		return err
	}
	return renderIPC(cmd.OutOrStdout(), buf, format)
}

func handleDotCommand(ctx context.Context, cmd *cobra.Command, s *session.Session, cfg *config.Config, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	errw := cmd.ErrOrStderr()

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(cmd.OutOrStdout())
		return true

	case ".tables":
		for _, name := range s.ListDatasets() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return true

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .schema <dataset>")
			return true
		}
		info, err := s.DescribeDataset(ctx, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		if err := renderDescribe(cmd.OutOrStdout(), info); err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
		}
		return true

	case ".rows":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .rows <dataset>")
			return true
		}
		count, err := s.GetRowCount(ctx, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), count)
		return true

	case ".preview":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .preview <dataset>")
			return true
		}
		buf, err := s.GetPreview(ctx, parts[1], int64(cfg.PreviewLimit))
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		if err := renderIPC(cmd.OutOrStdout(), buf, cfg.Format); err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
		}
		return true

	case ".import":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .import <file> [name]")
			return true
		}
		name := ""
		if len(parts) > 2 {
			name = parts[2]
		}
		registered, err := s.ImportFile(ctx, parts[1], name)
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported as %s\n", registered)
		return true

	case ".scan":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .scan <file>")
			return true
		}
		name, err := s.ScanFile(ctx, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned as %s\n", name)
		return true

	case ".drop":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errw, "Usage: .drop <dataset>")
			return true
		}
		removed, err := s.RemoveDataset(ctx, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errw, "Error: %v\n", err)
			return true
		}
		if !removed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No such dataset: %s\n", parts[1])
		}
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(errw, "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .tables          List datasets
  .schema <name>   Show the schema of a dataset
  .rows <name>     Print the row count of a dataset
  .preview <name>  Show the first rows of a dataset
  .import <file>   Import a file as a persisted dataset
  .scan <file>     Scan a file as a transient dataset
  .drop <name>     Remove a dataset
  .clear           Clear the screen
  .quit / .exit    Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for dataset names
`
	_, _ = fmt.Fprintln(w, help)
}

// newDatasetCompleter creates a readline completer for dataset names.
func newDatasetCompleter(s *session.Session) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range s.ListDatasets() {
		items = append(items, readline.PcItem(name))
	}

	// Add dot-commands
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".rows"),
		readline.PcItem(".preview"),
		readline.PcItem(".import"),
		readline.PcItem(".scan"),
		readline.PcItem(".drop"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
