package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jra3/taskgraph/internal/cache"
)

var (
	listSortBy     string
	listDescending bool
	listLimit      int
	listRequireAPI bool
	listRequireUI  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known conversations, sorted and filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		items := svc.ListConversations(cache.ListFilter{
			RequireAPIHistory: listRequireAPI,
			RequireUIMessages: listRequireUI,
			SortBy:            listSortBy,
			Descending:        listDescending,
			Limit:             listLimit,
		})
		if stdoutIsTerminal() {
			fmt.Println("TASK ID\tTITLE\tMESSAGES\tLAST ACTIVITY")
		}
		for _, sk := range items {
			fmt.Printf("%s\t%s\t%d msgs\t%s\n", sk.TaskID, sk.Metadata.Title, sk.Metadata.MessageCount, sk.Metadata.LastActivity)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listSortBy, "sort", "lastActivity", "lastActivity|messageCount|totalSize")
	listCmd.Flags().BoolVar(&listDescending, "desc", true, "sort descending")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "limit results (0 = unlimited)")
	listCmd.Flags().BoolVar(&listRequireAPI, "require-api-history", false, "only include tasks with API history")
	listCmd.Flags().BoolVar(&listRequireUI, "require-ui-messages", false, "only include tasks with UI messages")
	rootCmd.AddCommand(listCmd)
}
