package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var socialCmd = &cobra.Command{
	Use:   "social",
	Short: "Manage social-content acquisition and analysis",
}

var socialFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.Fetcher.RunCycle(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cycle %s: %d/%d accounts succeeded, %d posts stored (synthetic: %v)\n",
			status.State, status.Succeeded, status.Accounts, status.PostsStored, status.Synthetic)
		return nil
	},
}

var socialTrackCmd = &cobra.Command{
	Use:   "track <handle>",
	Short: "Register an account for fetch cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		acct, err := e.Fetcher.Track(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("tracking @%s (%s)\n", acct.Handle, acct.DisplayName)
		return nil
	},
}

var socialAnalyzeCmd = &cobra.Command{
	Use:   "analyze <handle>",
	Short: "Analyze an account's stored posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		analysis, err := e.Accounts.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal post analysis")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	socialCmd.AddCommand(socialFetchCmd)
	socialCmd.AddCommand(socialTrackCmd)
	socialCmd.AddCommand(socialAnalyzeCmd)
	rootCmd.AddCommand(socialCmd)
}
