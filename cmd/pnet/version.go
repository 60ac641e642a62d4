package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/papernet/internal/config"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version   string `json:"version"`
	UserAgent string `json:"user_agent"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the User-Agent sent to remote services",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadGlobalConfig()
		if err != nil {
			exitWithError(ExitConfigError, "loading config: %v", err)
		}
		resp := VersionResponse{
			Version:   Version,
			UserAgent: config.UserAgent(Version, cfg.Mailto),
		}
		if humanOutput {
			outputHuman("pnet %s\n", resp.Version)
			outputHuman("User-Agent: %s\n", resp.UserAgent)
			return nil
		}
		return outputJSON(resp)
	},
}
