package cmd

import (
	"fmt"
	"strings"
	"time"

	"releaseplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a new release train",
	Long: `Start a new release train. The kickoff stage begins on the next tick.

Targets take the form PLATFORM:target:version, one flag per target.
Regression slots are RFC3339 timestamps; each slot triggers one regression
cycle when its time arrives.

Example:
  relctl create --name "v2.4.0" --branch "release/v2.4.0" --base main \
    --target "IOS:app-store:2.4.0" --target "ANDROID:play-store:2.4.0" \
    --slot "2026-09-01T10:00:00Z" --slot "2026-09-03T10:00:00Z"`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		branch, _ := flags.GetString("branch")
		base, _ := flags.GetString("base")
		targets, _ := flags.GetStringArray("target")
		slots, _ := flags.GetStringArray("slot")
		manualUpload, _ := flags.GetBool("manual-upload")
		manualRegression, _ := flags.GetBool("manual-regression")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the RELEASEPLANE_TOKEN environment variable")
			return
		}

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		if branch == "" {
			cmd.Println("Error: --branch is required")
			return
		}

		if len(targets) == 0 {
			cmd.Println("Error: at least one --target is required")
			return
		}

		req := api.CreateReleaseRequest{
			Name:              name,
			Branch:            branch,
			BaseBranch:        base,
			ManualBuildUpload: manualUpload,
		}

		for _, t := range targets {
			spec, err := parseTarget(t)
			if err != nil {
				cmd.Printf("Error: %v\n", err)
				return
			}
			req.Targets = append(req.Targets, spec)
		}

		for _, s := range slots {
			at, err := time.Parse(time.RFC3339, s)
			if err != nil {
				cmd.Printf("Error: invalid --slot %q: %v\n", s, err)
				return
			}
			req.RegressionSlots = append(req.RegressionSlots, at)
		}

		if manualRegression {
			auto := false
			req.AutoRegression = &auto
		}

		client := NewReleaseClient(url, token)
		result, err := client.CreateRelease(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Release created!\nID: %s\nName: %s\n", result.ReleaseID, name)
	},
}

func parseTarget(raw string) (api.PlatformTargetSpec, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return api.PlatformTargetSpec{}, fmt.Errorf("invalid --target %q, expected PLATFORM:target:version", raw)
	}
	return api.PlatformTargetSpec{
		Platform: strings.ToUpper(parts[0]),
		Target:   parts[1],
		Version:  parts[2],
	}, nil
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("name", "n", "", "Name of the release (required)")
	flags.StringP("branch", "b", "", "Release branch to fork (required)")
	flags.String("base", "main", "Base branch to fork from")
	flags.StringArray("target", []string{}, "Platform target as PLATFORM:target:version (repeatable, required)")
	flags.StringArray("slot", []string{}, "Regression slot as RFC3339 timestamp (repeatable)")
	flags.Bool("manual-upload", false, "Gate build tasks on manually uploaded artifacts")
	flags.Bool("manual-regression", false, "Require manual approval for the regression stage")

	rootCmd.AddCommand(createCmd)
}
