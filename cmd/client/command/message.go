package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"msghub/internal/model"
	"msghub/internal/protocol"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show the most recent messages addressed to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		messages, status, err := c.Inbox()
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("inbox failed: %s", status)
		}
		printMessages(messages, "from", func(m model.Message) string { return m.Sender.Username })
		return nil
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Show the most recent messages you sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		messages, status, err := c.Outbox()
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("outbox failed: %s", status)
		}
		printMessages(messages, "to", func(m model.Message) string { return m.Receiver.Username })
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to another user",
	RunE: func(cmd *cobra.Command, args []string) error {
		receiver, _ := cmd.Flags().GetString("to")
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")

		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := c.SendMessage(username, receiver, title, content)
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("send failed: %s", status)
		}
		fmt.Printf("Message sent to %s.\n", receiver)
		return nil
	},
}

func printMessages(messages []model.Message, direction string, counterpart func(model.Message) string) {
	if len(messages) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s %s\n", m.Time, direction, counterpart(m))
		if m.Title != "" {
			fmt.Printf("  %s\n", m.Title)
		}
		if m.Content != "" {
			fmt.Printf("  %s\n", m.Content)
		}
	}
}

func init() {
	sendCmd.Flags().StringP("to", "t", "", "receiver username (required)")
	sendCmd.Flags().String("title", "", "message title")
	sendCmd.Flags().String("content", "", "message content")
	sendCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(sendCmd)
}
