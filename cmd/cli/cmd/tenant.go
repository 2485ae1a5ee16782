package cmd

import (
	"releaseplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant [name]",
	Short: "Register a new tenant",
	Long: `Register a new tenant and print its API key. The key is shown exactly
once; store it somewhere safe.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		url := viper.GetString("url")

		client := NewReleaseClient(url, "")
		result, err := client.CreateTenant(api.CreateTenantRequest{Name: name})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Tenant created!\nID: %s\nName: %s\nAPI Key: %s\n", result.ID, result.Name, result.ApiKey)
		cmd.Println("\nStore the API key now, it cannot be retrieved again.")
	},
}

func init() {
	rootCmd.AddCommand(tenantCmd)
}
