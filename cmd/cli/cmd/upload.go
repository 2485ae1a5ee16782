package cmd

import (
	"strings"

	"releaseplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [release_id]",
	Short: "Register a manually uploaded build artifact",
	Long: `Register a build artifact for a release that uses manual build uploads.
Build tasks in AWAITING_CALLBACK complete once every platform of the release
has an unconsumed artifact for the task's stage.

Example:
  relctl upload <release-id> --platform IOS --stage KICKOFF --artifact-ref s3://builds/app-2.4.0.ipa`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		releaseID := args[0]

		flags := cmd.Flags()
		platform, _ := flags.GetString("platform")
		stage, _ := flags.GetString("stage")
		artifactRef, _ := flags.GetString("artifact-ref")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RELEASEPLANE_TOKEN environment variable")
			return
		}

		if platform == "" {
			cmd.Println("Error: --platform is required")
			return
		}

		if stage == "" {
			cmd.Println("Error: --stage is required")
			return
		}

		if artifactRef == "" {
			cmd.Println("Error: --artifact-ref is required")
			return
		}

		client := NewReleaseClient(url, token)
		req := api.UploadBuildRequest{
			Platform:    strings.ToUpper(platform),
			Stage:       strings.ToUpper(stage),
			ArtifactRef: artifactRef,
		}

		result, err := client.UploadBuild(releaseID, req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Build registered!\nEntry ID: %s\n", result.EntryID)
	},
}

func init() {
	flags := uploadCmd.Flags()
	flags.StringP("platform", "p", "", "Platform the artifact was built for (required)")
	flags.StringP("stage", "s", "", "Stage the artifact belongs to: KICKOFF, REGRESSION or POST_REGRESSION (required)")
	flags.String("artifact-ref", "", "Reference to the uploaded artifact (required)")

	rootCmd.AddCommand(uploadCmd)
}
