package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [release_id]",
	Short: "Pause a release",
	Long:  `Pause a release. The engine stops ticking it until it is resumed; no tasks are executed and no regression cycles are started while paused.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		releaseID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RELEASEPLANE_TOKEN environment variable")
			return
		}

		client := NewReleaseClient(url, token)
		if err := client.PauseRelease(releaseID); err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("⏸ Release %s paused\n", releaseID)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [release_id]",
	Short: "Resume a paused release",
	Long:  `Resume a paused release. Ticking restarts from persisted state: completed tasks stay completed and failed tasks are retried.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		releaseID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RELEASEPLANE_TOKEN environment variable")
			return
		}

		client := NewReleaseClient(url, token)
		if err := client.ResumeRelease(releaseID); err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("▶ Release %s resumed\n", releaseID)
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}
