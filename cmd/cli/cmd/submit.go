package cmd

import (
	"meetscribe/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Upload a recording for processing",
	Long: `Upload an audio or video recording. The server converts, transcribes, summarizes
and scores it in the background and returns a job id immediately.

Example:
  meetctl submit standup.mp3
  meetctl submit interview.m4a --points 8 --style Paragraph --wait`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		points, _ := flags.GetInt("points")
		style, _ := flags.GetString("style")
		wait, _ := flags.GetBool("wait")
		interval, _ := flags.GetDuration("interval")

		if points < api.SummaryPointsMin || points > api.SummaryPointsMax {
			cmd.Printf("Error: --points must be between %d and %d\n", api.SummaryPointsMin, api.SummaryPointsMax)
			return
		}
		if style != api.SummaryStyleBullets && style != api.SummaryStyleParagraph {
			cmd.Printf("Error: --style must be %s or %s\n", api.SummaryStyleBullets, api.SummaryStyleParagraph)
			return
		}

		client := NewClient(viper.GetString("url"))
		result, err := client.Submit(args[0], api.SubmitOptions{
			NumSummaryPoints: points,
			SummaryStyle:     style,
		})
		if err != nil {
			printAPIError(cmd, "Submit", err)
			return
		}

		cmd.Printf("✓ Job submitted!\nJob ID: %s\n", result.JobID)
		if !wait {
			return
		}

		status, err := watchJob(cmd, client, result.JobID, interval)
		if err != nil {
			printAPIError(cmd, "Watch", err)
			return
		}
		printStatus(cmd, result.JobID, *status)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.IntP("points", "p", api.SummaryPointsDefault, "Number of summary points (3-10)")
	flags.StringP("style", "s", api.SummaryStyleBullets, "Summary style: Bullets or Paragraph")
	flags.BoolP("wait", "w", false, "Wait for the job to finish and print the result")
	flags.Duration("interval", defaultPollInterval, "Polling interval when waiting")

	rootCmd.AddCommand(submitCmd)
}
