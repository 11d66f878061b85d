package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/IshaanNene/xmarks/internal/collector"
	"github.com/IshaanNene/xmarks/internal/export"
	"github.com/IshaanNene/xmarks/internal/session"
	"github.com/IshaanNene/xmarks/internal/types"
)

// Controller is the part of a session the shell drives.
type Controller interface {
	Scan(ctx context.Context) (int, error)
	AutoScroll(ctx context.Context, onProgress collector.ProgressFunc) (*collector.Result, error)
	Stop() error
	Export(ctx context.Context, format string) (*export.Payload, string, error)
	Clear() error
	Status() string
	Count() int
	Stats() map[string]int64
}

// Shell is a line-oriented control surface over a bookmark session.
type Shell struct {
	ctrl   Controller
	in     *bufio.Reader
	out    io.Writer
	mu     sync.Mutex
	runs   sync.WaitGroup
	logger *slog.Logger
}

// New creates a shell reading commands from in and writing to out.
func New(ctrl Controller, in io.Reader, out io.Writer, logger *slog.Logger) *Shell {
	return &Shell{
		ctrl:   ctrl,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger.With("component", "shell"),
	}
}

// Run reads commands until exit, end of input, or ctx is done.
// A background auto-scroll is stopped and awaited before Run returns.
func (s *Shell) Run(ctx context.Context) error {
	defer s.shutdown()

	s.println("xmarks interactive shell")
	s.println("   Type 'help' for available commands, 'exit' to quit.")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		s.print("xmarks> ")

		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "exit", "quit", "q":
			s.println("Goodbye!")
			return nil
		case "scan":
			s.cmdScan(ctx)
		case "scroll":
			s.cmdScroll(ctx)
		case "stop":
			s.cmdStop()
		case "export":
			s.cmdExport(ctx, args)
		case "clear":
			s.cmdClear()
		case "status":
			s.println(s.ctrl.Status())
		case "stats":
			s.cmdStats()
		default:
			s.printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	s.println(`
Available Commands:
  scan                  Scrape the bookmarks currently on screen
  scroll                Auto-scroll the feed in the background
  stop                  Stop a running auto-scroll
  export [json|csv]     Export the collected bookmarks

  clear                 Forget all collected bookmarks
  status                Show run state and bookmark count
  stats                 Show scrape counters

  help                  Show this help
  exit                  Exit the shell`)
}

func (s *Shell) cmdScan(ctx context.Context) {
	added, err := s.ctrl.Scan(ctx)
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("Found %d new bookmarks (%d total)\n", added, s.ctrl.Count())
}

func (s *Shell) cmdScroll(ctx context.Context) {
	started := make(chan error, 1)

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()

		first := true
		res, err := s.ctrl.AutoScroll(ctx, func(int) {
			if first {
				first = false
				started <- nil
			}
		})
		if first {
			// Refused before the first iteration.
			started <- err
			return
		}
		if err != nil {
			s.printError(err)
			return
		}
		s.printf("\nAuto-scroll %s after %d iterations: %d new, %d total\n",
			res.Reason, res.Iterations, res.Added, res.Collected)
	}()

	if err := <-started; err != nil {
		s.printError(err)
		return
	}
	s.println("Auto-scroll running in background. Use 'status' to check progress, 'stop' to halt.")
}

func (s *Shell) cmdStop() {
	if err := s.ctrl.Stop(); err != nil {
		s.printError(err)
		return
	}
	s.println("Stopping...")
}

func (s *Shell) cmdExport(ctx context.Context, args []string) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}

	payload, location, err := s.ctrl.Export(ctx, format)
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("Exported %d bookmarks as %s to %s\n", payload.Count, payload.Format, location)
}

func (s *Shell) cmdClear() {
	if err := s.ctrl.Clear(); err != nil {
		s.printError(err)
		return
	}
	s.println("Collection cleared.")
}

func (s *Shell) cmdStats() {
	stats := s.ctrl.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Counter", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, stats[k]})
	}
	t.SetStyle(table.StyleRounded)
	s.println(t.Render())
}

// shutdown stops a background run and waits for it.
func (s *Shell) shutdown() {
	if err := s.ctrl.Stop(); err == nil {
		s.logger.Info("stopping auto-scroll before exit")
	}
	s.runs.Wait()
}

func (s *Shell) printError(err error) {
	switch {
	case errors.Is(err, types.ErrWrongPage):
		s.println(session.WrongPageMessage)
	case errors.Is(err, types.ErrBusy):
		s.println("Auto-scroll is running. Use 'stop' first.")
	case errors.Is(err, types.ErrNotRunning):
		s.println("No auto-scroll running.")
	case errors.Is(err, types.ErrEmptyCollection):
		s.println("No bookmarks collected yet. Use 'scan' or 'scroll' first.")
	case errors.Is(err, types.ErrUnsupportedFormat):
		s.println("Usage: export [json|csv]")
	default:
		s.printf("Error: %v\n", err)
	}
}

func (s *Shell) print(a string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, a)
}

func (s *Shell) println(a string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, a)
}

func (s *Shell) printf(format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, a...)
}
