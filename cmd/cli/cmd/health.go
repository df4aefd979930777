package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		result, err := client.Health()
		if err != nil {
			printAPIError(cmd, "Health check", err)
			return
		}
		cmd.Printf("%s✓%s Server is up (%s)\n", colorGreen, colorReset, result.Status)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
