package cmd

import (
	"strings"

	"meetscribe/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a transcript",
	Long: `Rank the sentences of a transcript against a free-text query. Without --job the most
recently processed transcript is searched.

Example:
  meetctl search "budget for next quarter"
  meetctl search deadline --job 5f0c... --limit 10`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID, _ := cmd.Flags().GetString("job")
		limit, _ := cmd.Flags().GetInt("limit")

		client := NewClient(viper.GetString("url"))
		result, err := client.Search(api.SearchRequest{
			Query: strings.Join(args, " "),
			JobID: jobID,
			Limit: limit,
		})
		if err != nil {
			printAPIError(cmd, "Search", err)
			return
		}

		if len(result.Results) == 0 {
			cmd.Println(result.Message)
			return
		}
		for i, r := range result.Results {
			cmd.Printf("%d. %s%.3f%s  %s %s(#%d)%s\n", i+1, colorCyan, r.Score, colorReset, r.Sentence, colorDim, r.Index, colorReset)
		}
	},
}

func init() {
	searchCmd.Flags().StringP("job", "j", "", "Job id to search (default: latest transcript)")
	searchCmd.Flags().IntP("limit", "l", 5, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
