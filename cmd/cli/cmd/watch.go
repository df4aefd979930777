package cmd

import (
	"time"

	"meetscribe/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPollInterval = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [job_id]",
	Short: "Follow a job until it finishes",
	Long:  `Poll a job and print each progress update until it completes or fails, then print the final status.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		interval, _ := cmd.Flags().GetDuration("interval")

		client := NewClient(viper.GetString("url"))
		status, err := watchJob(cmd, client, jobID, interval)
		if err != nil {
			printAPIError(cmd, "Watch", err)
			return
		}
		printStatus(cmd, jobID, *status)
	},
}

// watchJob polls until the job is terminal, printing a line whenever progress or the
// message changes. It returns early when the command's context is cancelled.
func watchJob(cmd *cobra.Command, client *Client, jobID string, interval time.Duration) (*api.JobStatusResponse, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx := cmd.Context()

	lastLine := ""
	for {
		status, err := client.GetJob(jobID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case api.StatusComplete, api.StatusError:
			return status, nil
		}

		progress := 0
		if status.Progress != nil {
			progress = *status.Progress
		}
		line := progressBar(progress) + " " + status.Message
		if line != lastLine {
			cmd.Println(line)
			lastLine = line
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", defaultPollInterval, "Polling interval")
	rootCmd.AddCommand(watchCmd)
}
