package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the server's tools and resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Close()

		out := cmd.OutOrStdout()

		if info := session.ServerInfo(); info != nil {
			fmt.Fprintf(out, "Server: %s %s\n\n", info.Name, info.Version)
		}

		tools := session.Tools()
		if len(tools) == 0 {
			fmt.Fprintln(out, "No tools exposed.")
		}

		for _, tool := range tools {
			fmt.Fprintf(out, "%s\n", tool.Name)
			if tool.Description != "" {
				fmt.Fprintf(out, "    %s\n", tool.Description)
			}
		}

		resources, ok, err := session.Resources(cmd.Context())
		if err != nil {
			return err
		}

		if ok {
			fmt.Fprintf(out, "\nResources (%d):\n", len(resources))
			for _, resource := range resources {
				fmt.Fprintf(out, "%s\t%s\n", resource.URI, resource.Name)
			}
		}

		return nil
	},
}
