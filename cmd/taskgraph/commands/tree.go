package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jra3/taskgraph/internal/render"
)

var (
	treeMode          string
	treeTruncateLines int
)

var treeCmd = &cobra.Command{
	Use:   "tree [task-id]",
	Short: "Render a conversation tree view (single, chain, or cluster)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		var taskID string
		if len(args) == 1 {
			taskID = args[0]
		}

		out, err := svc.ViewConversationTree(taskID, render.ViewMode(treeMode), treeTruncateLines)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	treeCmd.Flags().StringVar(&treeMode, "mode", "single", "single|chain|cluster")
	treeCmd.Flags().IntVar(&treeTruncateLines, "truncate-lines", 0, "preserve first/last N lines per message (0 disables)")
	rootCmd.AddCommand(treeCmd)
}
