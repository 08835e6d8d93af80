package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a learner's XP, achievements and completed courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		llmLimit, _ := cmd.Flags().GetInt("llm")

		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			engine := gamification.NewEngine(st.Gamification())
			sum, err := engine.Summary(ctx, userID)
			if err != nil {
				return err
			}
			completed, err := st.Progress().CompletedCourseCount(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Printf("Learner     %s\n", userID)
			fmt.Printf("XP          %d (level %d, %d to next)\n", sum.XP.TotalXP, sum.XP.Level, sum.XP.XPToNextLevel)
			fmt.Printf("Completed   %d course(s)\n", completed)
			if len(sum.Achievements) == 0 {
				fmt.Println("Achievements none yet")
			} else {
				fmt.Println("Achievements")
				for _, a := range sum.Achievements {
					fmt.Printf("  %-16s +%-4d %s\n", a.Name, a.Points, a.AwardedAt.Local().Format("2006-01-02"))
				}
			}

			if llmLimit > 0 {
				return printLLMRequests(ctx, st, llmLimit)
			}
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().String("user", defaultPlayUser, "Learner ID")
	statsCmd.Flags().Int("llm", 0, "Also list this many recent LLM requests")
}

func printLLMRequests(ctx context.Context, st *store.Store, limit int) error {
	events, err := st.EventRepo().RecentLLMRequests(ctx, limit)
	if err != nil {
		return fmt.Errorf("query LLM requests: %w", err)
	}
	fmt.Println()
	if len(events) == 0 {
		fmt.Println("No LLM requests recorded.")
		return nil
	}

	fmt.Printf("%-5s  %-19s  %-8s  %-28s  %-6s  %-6s  %-7s  %s\n",
		"Seq", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK")
	fmt.Println(strings.Repeat("─", 100))
	for _, e := range events {
		ok := "✓"
		if !e.Success {
			ok = "✗ " + e.ErrorMessage
		}
		model := e.Model
		if len(model) > 28 {
			model = model[:25] + "..."
		}
		fmt.Printf("%-5d  %-19s  %-8s  %-28s  %-6d  %-6d  %-7d  %s\n",
			e.Sequence,
			time.UnixMilli(e.CreatedAt).Local().Format("2006-01-02 15:04:05"),
			e.Purpose, model, e.InputTokens, e.OutputTokens, e.LatencyMs, ok)
	}
	return nil
}
