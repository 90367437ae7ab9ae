package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jra3/taskgraph/internal/commitlog"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Operate the shared, hash-chained commit log",
}

var commitAppendCmd = &cobra.Command{
	Use:   "append <type> <json-data>",
	Short: "Append a new Pending entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("data is not valid JSON: %s", args[1])
		}
		seq, hash, err := svc.CommitLog.Append(commitlog.NewEntry{
			Type:      args[0],
			MachineID: svc.Config.MachineID,
			Data:      json.RawMessage(args[1]),
		})
		if err != nil {
			return err
		}
		fmt.Printf("sequence=%d hash=%s\n", seq, hash)
		return nil
	},
}

var commitGetCmd = &cobra.Command{
	Use:   "get <seq>",
	Short: "Fetch a single commit entry by sequence number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		seq, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		e, ok := svc.CommitLog.Get(seq)
		if !ok {
			return fmt.Errorf("commit entry %d not found", seq)
		}
		return printJSON(e)
	},
}

var commitLatestCmd = &cobra.Command{
	Use:   "latest [n]",
	Short: "List the most recent commit entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		n := 10
		if len(args) == 1 {
			n, err = strconv.Atoi(args[0])
			if err != nil {
				return err
			}
		}
		entries, hasMore, nextSeqHint := svc.CommitLog.GetLatest(n)
		for _, e := range entries {
			fmt.Printf("%d\t%s\t%s\n", e.SequenceNumber, e.Status, e.Type)
		}
		if hasMore {
			fmt.Printf("more available, next-seq hint: %d\n", nextSeqHint)
		}
		return nil
	},
}

var commitSinceCmd = &cobra.Command{
	Use:   "since <RFC3339-timestamp>",
	Short: "List commit entries at or after a timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ts, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return err
		}
		for _, e := range svc.CommitLog.GetSince(ts) {
			fmt.Printf("%d\t%s\t%s\n", e.SequenceNumber, e.Status, e.Type)
		}
		return nil
	},
}

var commitPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List Pending entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, e := range svc.CommitLog.GetPending() {
			fmt.Printf("%d\t%s\n", e.SequenceNumber, e.Type)
		}
		return nil
	},
}

var commitApplyCmd = &cobra.Command{
	Use:   "apply <seq>",
	Short: "Transition a Pending entry to Applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		seq, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return svc.CommitLog.Apply(seq)
	},
}

var commitApplyAllCmd = &cobra.Command{
	Use:   "apply-all",
	Short: "Apply every Pending entry in order, continuing past failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, r := range svc.CommitLog.ApplyPending() {
			if r.Err != nil {
				fmt.Printf("%d\tfailed: %v\n", r.SequenceNumber, r.Err)
			} else {
				fmt.Printf("%d\tapplied\n", r.SequenceNumber)
			}
		}
		return nil
	},
}

var commitRollbackCmd = &cobra.Command{
	Use:   "rollback <seq> <reason>",
	Short: "Move an entry to RolledBack",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		seq, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return svc.CommitLog.Rollback(seq, args[1])
	},
}

var commitVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check sequence contiguity, hash integrity, and status bucket agreement",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		report := svc.CommitLog.VerifyConsistency()
		if report.IsConsistent {
			fmt.Println("consistent")
			return nil
		}
		for _, inc := range report.Inconsistencies {
			fmt.Printf("seq=%d code=%s severity=%s %s\n", inc.SequenceNumber, inc.Code, inc.Severity, inc.Detail)
		}
		return fmt.Errorf("found %d inconsistencies", len(report.Inconsistencies))
	},
}

var commitCompressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Move entries older than the configured compression age into archive/",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		cutoff := time.Now().Add(-svc.Config.CommitLog.CompressionAge)
		moved, err := svc.CommitLog.CompressOldEntries(cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("archived %d entries\n", moved)
		return nil
	},
}

var commitCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove Failed entries that exhausted their retry budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		removed, err := svc.CommitLog.CleanupFailedEntries()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d entries\n", removed)
		return nil
	},
}

var commitResetForce bool

var commitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all entries and clear state (requires --force)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.CommitLog.ResetCommitLog(commitResetForce)
	},
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	commitResetCmd.Flags().BoolVar(&commitResetForce, "force", false, "confirm destructive reset")

	commitCmd.AddCommand(commitAppendCmd, commitGetCmd, commitLatestCmd, commitSinceCmd, commitPendingCmd,
		commitApplyCmd, commitApplyAllCmd, commitRollbackCmd, commitVerifyCmd, commitCompressCmd,
		commitCleanupCmd, commitResetCmd)
	rootCmd.AddCommand(commitCmd)
}
