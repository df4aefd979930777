package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultURL is the server address used when none is configured.
const DefaultURL = "http://localhost:8000"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "meetctl",
	Short: "meetctl is a command line tool for the meetscribe meeting analysis server",
	Long: `meetctl is the command-line interface for meetscribe.

meetscribe turns recorded meetings into a transcript, an extractive summary and a
sentiment report. Uploads are processed in the background; poll a job until it
completes, then search what was said.

Common workflows:

  Submit a recording and wait for the result:
    meetctl submit standup.mp3 --points 5 --style Bullets --wait

  Check a job:
    meetctl status <job-id>

  Follow progress until the job finishes:
    meetctl watch <job-id>

  Search the latest transcript:
    meetctl search "release date"

Configuration:
  Set the server address via flag, environment variable or config file:
    MEETSCRIBE_URL    Server URL (default: http://localhost:8000)`,
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

		// Search config in home directory with name ".meetctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".meetctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "MEETSCRIBE_VARNAME"
	viper.SetEnvPrefix("MEETSCRIBE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.meetctl.yaml)")

	rootCmd.PersistentFlags().String("url", DefaultURL, "meetscribe server URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}

// printAPIError reports a failed API call on the command's output.
func printAPIError(cmd *cobra.Command, action string, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("%s failed (%d): %s\n", action, apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("%s failed: %v\n", action, err)
}
