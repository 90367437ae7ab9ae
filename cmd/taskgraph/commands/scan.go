package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Wipe the skeleton cache and reconstruct the hierarchy from scratch",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := svc.Engine.Rebuild(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("phase1: processed=%d prefixes=%d indexSize=%d errors=%d\n",
			result.Phase1.Processed, result.Phase1.Prefixes, result.Phase1.IndexSize, len(result.Phase1.Errors))
		fmt.Printf("phase2: processed=%d resolved=%d unresolved=%d\n",
			result.Phase2.Processed, result.Phase2.Resolved, result.Phase2.Unresolved)
		if len(result.BuildErrors) > 0 {
			fmt.Printf("build errors: %d\n", len(result.BuildErrors))
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <task-id> <task-dir>",
	Short: "Re-run the builder and resolver for a single task if its source changed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		changed, err := svc.Engine.Refresh(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("refreshed")
		} else {
			fmt.Println("unchanged")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(refreshCmd)
}
