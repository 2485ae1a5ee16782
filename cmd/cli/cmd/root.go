package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relctl",
	Short: "Relctl is a command line tool for driving releaseplane release trains",
	Long: `relctl is the command-line interface for the ReleasePlane orchestration engine.

ReleasePlane coordinates mobile release trains through three sequential stages:

  - Kickoff: branch forking, tracking tickets, test runs, kickoff builds
  - Regression: scheduled regression cycles with per-cycle builds and runs
  - Post-Regression: release tags, store builds, release tickets

Common workflows:

  Start a release train:
    relctl create --name "v2.4.0" --branch "release/v2.4.0" --base main \
      --target "IOS:app-store:2.4.0" --target "ANDROID:play-store:2.4.0"

  Check where a release is:
    relctl status <release-id>

  Pause and resume:
    relctl pause <release-id>
    relctl resume <release-id>

  Approve a manual stage transition:
    relctl approve <release-id>

  Register a manually uploaded build:
    relctl upload <release-id> --platform IOS --stage POST_REGRESSION --artifact-ref s3://builds/app.ipa

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    RELEASEPLANE_API_URL    API endpoint (default: http://localhost:7171)
    RELEASEPLANE_TOKEN      Tenant API Token for authentication

For more information, visit: https://github.com/releaseplane/releaseplane`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".relctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".relctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "RELEASEPLANE_VARNAME"
	viper.SetEnvPrefix("RELEASEPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:7171", "ReleasePlane Orchestrator URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API Token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
