package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer using the available tools; " +
	"say so when the tools cannot answer the question."

var systemPrompt string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question, letting the model invoke server tools",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Close()

		answer, err := session.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), answer)

		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&systemPrompt, "system-prompt", defaultSystemPrompt,
		"system prompt seeding the conversation")
}
