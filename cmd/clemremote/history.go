package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/skobkin/clemremote/internal/app"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/spf13/cobra"
)

func historyCmd(global *globalOptions) *cobra.Command {
	var (
		limit    int
		sessions bool
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored sessions and track changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if global.noHistory {
				return errors.New("history is unavailable with --no-history")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			rt, err := global.openRuntime()
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			return runHistory(cmd, rt, limit, sessions, clearAll)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list sessions instead of track changes")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all stored history")

	return cmd
}

func runHistory(cmd *cobra.Command, rt *app.Runtime, limit int, sessions, clearAll bool) error {
	if rt.DB == nil {
		return fmt.Errorf("history is disabled in %s", rt.Paths.ConfigFile)
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if clearAll {
		if err := rt.ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "history cleared")

		return nil
	}

	if sessions {
		records, err := rt.SessionRepo.ListRecent(ctx, limit)
		if err != nil {
			return err
		}
		printSessions(out, records)

		return nil
	}

	entries, err := rt.PlaybackRepo.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	printPlaybackEntries(out, entries)

	return nil
}

func printSessions(out io.Writer, records []domain.SessionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "no sessions recorded")

		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTARGET\tDURATION\tSTATE\tRECONNECTS\tBYTES IN/OUT")
	for _, r := range records {
		duration := "running"
		if r.Ended() {
			duration = r.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\n",
			r.StartedAt.Local().Format(time.DateTime), r.Target, duration, r.FinalState, r.Reconnects, r.BytesIn, r.BytesOut)
	}
	_ = tw.Flush()
}
