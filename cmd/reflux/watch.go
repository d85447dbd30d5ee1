package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/reflux"
)

type watchOptions struct {
	keys     []string
	interval time.Duration
	clock    clockz.Clock
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	wo := &watchOptions{clock: clockz.RealClock}

	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Answer key lookups from stdin while the file is edited",
		Long: `Open FILE and answer each key typed on stdin from the current snapshot.
Edits to FILE are picked up on the next lookup. With --interval, the --key
values are printed on every tick. Type "quit" or send EOF to exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			return runWatch(cmd.Context(), s, wo, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&wo.keys, "key", nil, "key to print on every tick (repeatable)")
	cmd.Flags().DurationVar(&wo.interval, "interval", 0, "print --key values at this interval")

	return cmd
}

func runWatch(ctx context.Context, s *reflux.Session, wo *watchOptions, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var tick <-chan time.Time
	if wo.interval > 0 && len(wo.keys) > 0 {
		ticker := wo.clock.NewTicker(wo.interval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	prompt(out)
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			snap := s.Config()
			fmt.Fprintf(out, "\n[v%d %s]\n", snap.Version(), snap.ModTime().Format(time.RFC3339))
			for _, key := range wo.keys {
				answer(out, snap, key)
			}
			prompt(out)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			key := strings.TrimSpace(line)
			switch key {
			case "":
			case "quit", "exit":
				return nil
			case "?":
				snap := s.Config()
				for _, k := range snap.Keys() {
					fmt.Fprintln(out, k)
				}
			default:
				answer(out, s.Config(), key)
			}
			prompt(out)
		}
	}
}

func answer(out io.Writer, snap *reflux.Snapshot, key string) {
	if err := printKey(out, snap, key); err != nil {
		fmt.Fprintf(out, "%s: %v\n", key, err)
	}
}

func prompt(out io.Writer) {
	fmt.Fprint(out, "> ")
}
