package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/synapse-dev/synapse/pkg/devtools"
	"github.com/synapse-dev/synapse/pkg/synapse"
)

func replayCmd() *cobra.Command {
	var (
		from   uint64
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Print a recorded diagnostic timeline",
		Long: `Print the diagnostic records stored in a flight-recorder file.

The file is written by "synapse serve --record" or by any program that
attaches a devtools recorder. Records print one per line in sequence
order; --json emits them as JSON lines instead.

The recorder holds an exclusive lock on the file, so stop the writing
process before replaying.

Examples:
  synapse replay synapse.db
  synapse replay synapse.db --from=100 --limit=50
  synapse replay synapse.db --json | jq '.op' | sort | uniq -c`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0], from, limit, asJSON)
		},
	}

	cmd.Flags().Uint64Var(&from, "from", 1, "First sequence number to print")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to print (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON lines")

	return cmd
}

func runReplay(path string, from uint64, limit int, asJSON bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rec, err := devtools.OpenRecorder(path, logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	records, err := rec.Records(from, limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		warn("no records at or after seq %d", from)
		return nil
	}

	for _, r := range records {
		fmt.Printf("%6d  %s  %-16s  %s\n",
			r.Seq, r.Time.Format("15:04:05.000"), r.Op, describeRecord(r))
	}
	fmt.Println()
	info("%d records", len(records))

	return nil
}

// describeRecord renders the op-specific payload of a record for the
// one-line timeline format.
func describeRecord(r synapse.Record) string {
	switch r.Op {
	case synapse.OpRead:
		return fmt.Sprintf("%s = %v", r.Signal, r.Value)
	case synapse.OpWrite:
		if !r.Changed {
			return fmt.Sprintf("%s: %v -> %v (unchanged)", r.Signal, r.From, r.To)
		}
		return fmt.Sprintf("%s: %v -> %v (%d subscribers)", r.Signal, r.From, r.To, r.Subscribers)
	case synapse.OpEffectRun:
		if r.Err != "" {
			return fmt.Sprintf("%s failed: %s", r.Effect, r.Err)
		}
		return r.Effect
	case synapse.OpEffectRetry:
		return fmt.Sprintf("%s attempt %d in %s: %s", r.Effect, r.Attempt, r.Delay, r.Err)
	case synapse.OpEffectExhausted:
		return fmt.Sprintf("%s gave up after %d attempts: %s", r.Effect, r.Attempt, r.Err)
	case synapse.OpEffectDispose:
		return r.Effect
	case synapse.OpResourceFetch:
		return fmt.Sprintf("%s generation %d", r.Signal, r.Attempt)
	}
	return ""
}
