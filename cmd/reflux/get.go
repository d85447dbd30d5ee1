package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/reflux"
	"gopkg.in/yaml.v3"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get FILE KEY...",
		Short: "Print configuration values and exit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			snap := s.Config()
			var errs []error
			for _, key := range args[1:] {
				if err := printKey(cmd.OutOrStdout(), snap, key); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

// printKey writes "key = value". Objects and lists are rendered as YAML.
func printKey(w io.Writer, snap *reflux.Snapshot, key string) error {
	v, err := snap.Get(key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %s\n", key, render(v))
	return err
}

func render(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return "\n" + strings.TrimRight(string(out), "\n")
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}
