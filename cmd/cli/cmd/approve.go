package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var approveCmd = &cobra.Command{
	Use:   "approve [release_id]",
	Short: "Approve the next stage transition",
	Long: `Approve a release waiting on a manual stage transition. The next stage
starts on the following tick. Fails if the current stage has not completed
or the next stage has already started.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		releaseID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RELEASEPLANE_TOKEN environment variable")
			return
		}

		client := NewReleaseClient(url, token)
		result, err := client.ApproveTransition(releaseID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Approved, %s stage started\n", result.Stage)
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
