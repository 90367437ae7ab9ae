package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jra3/taskgraph/internal/message"
)

var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Operate the shared inter-machine message store",
}

var (
	msgTo       string
	msgSubject  string
	msgBody     string
	msgPriority string
	msgThreadID string
)

var msgSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		m, err := svc.Messages.Send(message.SendInput{
			From:     svc.Config.MachineID,
			To:       msgTo,
			Subject:  msgSubject,
			Body:     msgBody,
			Priority: message.Priority(msgPriority),
			ThreadID: msgThreadID,
		})
		if err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	},
}

var msgInboxFilter string
var msgInboxLimit int

var msgInboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List this machine's inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		items, err := svc.Messages.ReadInbox(svc.Config.MachineID, message.StatusFilter(msgInboxFilter), msgInboxLimit)
		if err != nil {
			return err
		}
		if stdoutIsTerminal() {
			fmt.Println("ID\tFROM\tSUBJECT\tSTATUS\tPREVIEW")
		}
		for _, it := range items {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", it.ID, it.From, it.Subject, it.Status, it.Preview)
		}
		return nil
	},
}

var msgReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a message as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		_, err = svc.Messages.MarkAsRead(args[0])
		return err
	},
}

var msgArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.Messages.ArchiveMessage(args[0])
	},
}

var msgAmendReason string

var msgAmendCmd = &cobra.Command{
	Use:   "amend <id> <new-body>",
	Short: "Amend a sent message's body while the recipient's copy remains unread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		_, err = svc.Messages.Amend(message.AmendInput{
			ID:              args[0],
			InvokingMachine: svc.Config.MachineID,
			NewBody:         args[1],
			Reason:          msgAmendReason,
		})
		return err
	},
}

var msgReplyCmd = &cobra.Command{
	Use:   "reply <id> <body>",
	Short: "Reply to a message, inheriting its thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		original, err := svc.Messages.GetMessage(args[0])
		if err != nil {
			return err
		}
		m, err := svc.Messages.Reply(args[0], svc.Config.MachineID, original.From, "re: "+original.Subject, args[1], message.PriorityMedium)
		if err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	},
}

func init() {
	msgSendCmd.Flags().StringVar(&msgTo, "to", "", "recipient machine id")
	msgSendCmd.Flags().StringVar(&msgSubject, "subject", "", "subject")
	msgSendCmd.Flags().StringVar(&msgBody, "body", "", "body")
	msgSendCmd.Flags().StringVar(&msgPriority, "priority", "MEDIUM", "LOW|MEDIUM|HIGH|URGENT")
	msgSendCmd.Flags().StringVar(&msgThreadID, "thread-id", "", "thread id")

	msgInboxCmd.Flags().StringVar(&msgInboxFilter, "status", "all", "unread|read|all")
	msgInboxCmd.Flags().IntVar(&msgInboxLimit, "limit", 0, "limit results (0 = unlimited)")

	msgAmendCmd.Flags().StringVar(&msgAmendReason, "reason", "", "amendment reason")

	msgCmd.AddCommand(msgSendCmd, msgInboxCmd, msgReadCmd, msgArchiveCmd, msgAmendCmd, msgReplyCmd)
	rootCmd.AddCommand(msgCmd)
}
