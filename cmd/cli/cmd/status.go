package cmd

import (
	"fmt"
	"strings"

	"meetscribe/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve the current state of a job (pending, running, complete, error). Running jobs show progress; completed jobs show the transcript, summary and sentiment.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := NewClient(viper.GetString("url"))
		status, err := client.GetJob(jobID)
		if err != nil {
			printAPIError(cmd, "Status", err)
			return
		}

		printStatus(cmd, jobID, *status)
	},
}

func printStatus(cmd *cobra.Command, jobID string, status api.JobStatusResponse) {
	// Header with status icon
	icon := statusIcon(status.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, jobID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(status.Status))

	if status.Progress != nil {
		cmd.Printf("%sProgress:%s    %s\n", colorDim, colorReset, progressBar(*status.Progress))
	}
	if status.Message != "" {
		cmd.Printf("%sMessage:%s     %s\n", colorDim, colorReset, status.Message)
	}
	if status.Error != "" {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, status.Error, colorReset)
	}

	if status.Results == nil {
		return
	}
	r := status.Results
	cmd.Printf("\n%sSummary%s\n%s\n", colorBold, colorReset, r.Summary)
	cmd.Printf("\n%sSentiment%s\n", colorBold, colorReset)
	cmd.Printf("%sOverall:%s     %s (compound %.2f)\n", colorDim, colorReset, r.Sentiment.Overall, r.Sentiment.Compound)
	cmd.Printf("%sBreakdown:%s   %s%.1f%% positive%s, %s%.1f%% negative%s, %.1f%% neutral\n", colorDim, colorReset,
		colorGreen, r.Sentiment.Positive, colorReset,
		colorRed, r.Sentiment.Negative, colorReset,
		r.Sentiment.Neutral)
	cmd.Printf("\n%sTranscript%s\n%s\n", colorBold, colorReset, r.Transcript)
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
	case api.StatusComplete:
		return colorGreen + "✓" + colorReset
	case api.StatusError:
		return colorRed + "✗" + colorReset
	case api.StatusRunning:
		return colorYellow + "⏳" + colorReset
	case api.StatusPending:
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	label := strings.ToUpper(status)
	switch status {
	case api.StatusComplete:
		return icon + " " + colorGreen + label + colorReset
	case api.StatusError:
		return icon + " " + colorRed + label + colorReset
	case api.StatusRunning:
		return icon + " " + colorYellow + label + colorReset
	case api.StatusPending:
		return icon + " " + colorCyan + label + colorReset
	default:
		return label
	}
}

func progressBar(progress int) string {
	const width = 20
	progress = max(0, min(100, progress))
	filled := progress * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), progress)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
