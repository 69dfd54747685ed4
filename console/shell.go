package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shimmeringbee/lockbridge"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
)

// Shell is the line-oriented operator console. Each command maps 1:1 to a
// bridge intent; lock numbers on the wire are 1-based.
type Shell struct {
	bridge *lockbridge.Bridge
	out    io.Writer
	logger logwrap.Logger
}

func New(b *lockbridge.Bridge, out io.Writer) *Shell {
	return &Shell{
		bridge: b,
		out:    out,
		logger: logwrap.New(discard.Discard()),
	}
}

func (s *Shell) WithLogWrapLogger(lw logwrap.Logger) {
	s.logger = lw
}

// Run executes commands from in until it is exhausted or the context ends.
// Reading happens on a separate goroutine so cancellation is not stuck behind
// a blocked read.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	result := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(in)

		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}

		result <- sc.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-result:
			return err
		case line := <-lines:
			s.Execute(ctx, line)
		}
	}
}

// Execute applies a single command line, writing any response to the shell's
// output. Rejections are reported to the operator and never mutate a slot.
func (s *Shell) Execute(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "add":
		s.add(ctx, strings.Join(args, " "))
	case "remove":
		s.withSlot(args, func(slot int) {
			if err := s.bridge.RemoveLock(ctx, slot); err != nil {
				s.reject(slot, err)
			} else {
				fmt.Fprintf(s.out, "Removed lock %d\n", slot+1)
			}
		})
	case "lock":
		s.retarget(ctx, args, lockbridge.Secured)
	case "unlock":
		s.retarget(ctx, args, lockbridge.Unsecured)
	case "jam":
		s.withSlot(args, func(slot int) {
			if err := s.bridge.ForceJam(ctx, slot); err != nil {
				s.reject(slot, err)
			} else {
				fmt.Fprintf(s.out, "Jammed lock %d\n", slot+1)
			}
		})
	case "battery":
		s.withSlot(args, func(slot int) {
			if err := s.bridge.ToggleLowBattery(ctx, slot); err != nil {
				s.reject(slot, err)
			} else {
				fmt.Fprintf(s.out, "Toggled low battery for lock %d\n", slot+1)
			}
		})
	case "clear":
		s.withSlot(args, func(slot int) {
			if err := s.bridge.ClearErrors(ctx, slot); err != nil {
				s.reject(slot, err)
			} else {
				fmt.Fprintf(s.out, "Cleared errors for lock %d\n", slot+1)
			}
		})
	case "identify":
		s.withSlot(args, func(slot int) {
			if err := s.bridge.Identify(ctx, slot, 0); err != nil {
				s.reject(slot, err)
			} else {
				fmt.Fprintf(s.out, "Identifying lock %d\n", slot+1)
			}
		})
	case "rename":
		s.rename(ctx, args)
	case "status":
		s.bridge.Report(s.out)
	case "help":
		s.help()
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for available commands.")
	}
}

func (s *Shell) add(ctx context.Context, name string) {
	if name == "" {
		fmt.Fprintln(s.out, "Usage: add <name>")
		return
	}

	slot, err := s.bridge.AddLock(ctx, name)
	if err != nil {
		if errors.Is(err, lockbridge.ErrCapacityExceeded) {
			fmt.Fprintln(s.out, "Cannot add lock: bridge is full.")
		} else {
			fmt.Fprintf(s.out, "Cannot add lock: %s\n", err)
		}
		return
	}

	fmt.Fprintf(s.out, "Added lock %d: %s\n", slot+1, name)
}

func (s *Shell) retarget(ctx context.Context, args []string, target lockbridge.LockState) {
	s.withSlot(args, func(slot int) {
		if err := s.bridge.SetTarget(ctx, slot, target); err != nil {
			s.reject(slot, err)
			return
		}

		switch target {
		case lockbridge.Secured:
			fmt.Fprintf(s.out, "Locking lock %d\n", slot+1)
		default:
			fmt.Fprintf(s.out, "Unlocking lock %d\n", slot+1)
		}
	})
}

func (s *Shell) rename(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: rename <num> <name>")
		return
	}

	slot, ok := parseSlot(args[0])
	if !ok {
		fmt.Fprintln(s.out, "Invalid lock number")
		return
	}

	name := strings.Join(args[1:], " ")

	if err := s.bridge.Rename(ctx, slot, name); err != nil {
		s.reject(slot, err)
		return
	}

	fmt.Fprintf(s.out, "Renamed lock %d to %s\n", slot+1, name)
}

func (s *Shell) withSlot(args []string, fn func(slot int)) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Invalid lock number")
		return
	}

	slot, ok := parseSlot(args[0])
	if !ok {
		fmt.Fprintln(s.out, "Invalid lock number")
		return
	}

	fn(slot)
}

func parseSlot(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, false
	}

	return n - 1, true
}

func (s *Shell) reject(slot int, err error) {
	switch {
	case errors.Is(err, lockbridge.ErrNotFound):
		fmt.Fprintf(s.out, "No lock %d\n", slot+1)
	case errors.Is(err, lockbridge.ErrInvalidTransition):
		fmt.Fprintf(s.out, "Lock %d is jammed, clear errors first\n", slot+1)
	default:
		fmt.Fprintf(s.out, "Command failed for lock %d: %s\n", slot+1, err)
	}
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, "========== AVAILABLE COMMANDS ==========")
	fmt.Fprintln(s.out, "add <name>          - Add new lock with name")
	fmt.Fprintln(s.out, "remove <num>        - Remove lock by number")
	fmt.Fprintln(s.out, "lock <num>          - Lock specific lock")
	fmt.Fprintln(s.out, "unlock <num>        - Unlock specific lock")
	fmt.Fprintln(s.out, "jam <num>           - Force jam status for lock")
	fmt.Fprintln(s.out, "battery <num>       - Toggle low battery for lock")
	fmt.Fprintln(s.out, "clear <num>         - Clear error states for lock")
	fmt.Fprintln(s.out, "identify <num>      - Blink lock indicator for identification")
	fmt.Fprintln(s.out, "rename <num> <name> - Rename lock")
	fmt.Fprintln(s.out, "status              - Display current status")
	fmt.Fprintln(s.out, "help                - Show this help")
	fmt.Fprintln(s.out, "========================================")
}
