package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/dupelink/dupelink/pkg/linker"
	"github.com/dupelink/dupelink/pkg/matcher"
)

func printHashes(out io.Writer, hashes []matcher.HashedRecord) {
	for _, side := range []matcher.Side{matcher.SideSource, matcher.SideDestination} {
		fmt.Fprintf(out, "%s files:\n", side)
		for _, h := range hashes {
			if h.Side != side {
				continue
			}
			fmt.Fprintf(out, "  %s  %s  %q\n", h.Digest, humanize.IBytes(uint64(h.Record.Size)), h.Record.Path)
		}
	}
}

func printReport(out io.Writer, mode linker.Mode, res *matcher.Result, results []linker.Result, summary linker.Summary) {
	for _, r := range results {
		size := humanize.IBytes(uint64(r.Pair.Destination.Size))

		switch r.Outcome {
		case linker.OutcomeWouldLink:
			fmt.Fprintf(out, "would link (%s): %q -> %q\n", size, r.Pair.Destination.Path, r.Pair.Source.Path)
		case linker.OutcomeLinked:
			fmt.Fprintf(out, "linked (%s): %q -> %q\n", size, r.Pair.Destination.Path, r.Pair.Source.Path)
		case linker.OutcomeSkipped:
			fmt.Fprintf(out, "skipped: %q: %s\n", r.Pair.Destination.Path, r.Reason())
		case linker.OutcomeFailed:
			fmt.Fprintf(out, "failed: %q: %s\n", r.Pair.Destination.Path, r.Reason())
		}
	}

	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %s\n", e.Error())
	}

	fmt.Fprintf(out, "\nCompared %d source files with %d destination files, %d not hashed (no size match)\n",
		res.SourceFiles, res.DestinationFiles, res.Pruned)
	fmt.Fprintf(out, "%d matches with a total size of %s\n", len(res.Pairs), humanize.IBytes(res.MatchedBytes))

	if res.SelfMatches > 0 || res.AlreadyLinked > 0 {
		fmt.Fprintf(out, "%d destination files are sources themselves, %d already link to a source\n",
			res.SelfMatches, res.AlreadyLinked)
	}

	if mode == linker.ModeDryRun {
		fmt.Fprintf(out, "Dry-run, nothing was changed. %s would be reclaimed.\n", humanize.IBytes(summary.ReclaimedBytes))
		if summary.WouldLink > 0 {
			fmt.Fprintln(out, "Re-run with --softlink or --hardlink to create the links.")
		}
		return
	}

	fmt.Fprintf(out, "Processed %d pairs: linked %d, skipped %d, failed %d, reclaimed %s\n",
		summary.Total(), summary.Linked, summary.Skipped, summary.Failed, humanize.IBytes(summary.ReclaimedBytes))
}
