package cmd

import (
	"fmt"
	"time"

	"releaseplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [release_id]",
	Short: "Get status of a release",
	Long:  `Retrieve detailed status for a release, including its per-stage progress, scheduler state, and the tasks of the current stage.`,
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
		release, err := client.GetRelease(releaseID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		printStatus(cmd, release)
	},
}

func printStatus(cmd *cobra.Command, release *api.ReleaseStatusResponse) {
	icon := statusIcon(release.Status)
	cmd.Printf("%s %sRelease %s%s\n", icon, colorBold, release.Name, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s              %s\n", colorDim, colorReset, release.ID)
	cmd.Printf("%sBranch:%s          %s\n", colorDim, colorReset, release.Branch)
	cmd.Printf("%sStatus:%s          %s\n", colorDim, colorReset, colorizeStatus(release.Status))
	cmd.Printf("%sScheduler:%s       %s\n", colorDim, colorReset, colorizeStatus(release.CronStatus))
	cmd.Printf("%sKickoff:%s         %s\n", colorDim, colorReset, colorizeStatus(release.Stage1Status))
	cmd.Printf("%sRegression:%s      %s\n", colorDim, colorReset, colorizeStatus(release.Stage2Status))
	cmd.Printf("%sPost-Regression:%s %s\n", colorDim, colorReset, colorizeStatus(release.Stage3Status))
	cmd.Printf("%sCreated:%s         %s %s(%s ago)%s\n", colorDim, colorReset,
		release.CreatedAt.Format("Mon, 02 Jan 2006 15:04:05 MST"),
		colorDim, relativeTime(release.CreatedAt), colorReset)

	if len(release.Tasks) == 0 {
		return
	}

	cmd.Printf("\n%sTasks%s\n", colorBold, colorReset)
	for _, task := range release.Tasks {
		line := fmt.Sprintf("%s %-28s %s", statusIcon(task.Status), task.Type, colorizeStatus(task.Status))
		if task.Cycle != nil {
			line += fmt.Sprintf(" %s(cycle %d)%s", colorDim, *task.Cycle, colorReset)
		}
		cmd.Println(line)
		if task.Error != nil {
			cmd.Printf("    %s%s%s\n", colorRed, *task.Error, colorReset)
		}
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "COMPLETED":
		return colorGreen + "✓" + colorReset
	case "FAILED":
		return colorRed + "✗" + colorReset
	case "IN_PROGRESS", "RUNNING":
		return colorYellow + "⏳" + colorReset
	case "PENDING", "AWAITING_CALLBACK":
		return colorCyan + "◯" + colorReset
	case "PAUSED":
		return colorYellow + "⏸" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	switch status {
	case "COMPLETED":
		return colorGreen + status + colorReset
	case "FAILED", "PAUSED":
		return colorRed + status + colorReset
	case "IN_PROGRESS", "RUNNING":
		return colorYellow + status + colorReset
	case "PENDING", "AWAITING_CALLBACK", "SKIPPED":
		return colorCyan + status + colorReset
	default:
		return status
	}
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
