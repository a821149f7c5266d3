package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
)

func (a *app) statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Glucose statistics",
	}
	week := &cobra.Command{
		Use:   "week",
		Short: "Statistics over the last seven days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				return printJSON(cmd.OutOrStdout(), st.GetWeekStats())
			})
		},
	}
	cmd.AddCommand(week)
	return cmd
}

func (a *app) contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show the personalization context sent with chat requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				return printJSON(cmd.OutOrStdout(), st.GetRecentContext())
			})
		},
	}
}

func (a *app) memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage what the assistant remembers",
	}

	fact := &cobra.Command{
		Use:   "fact <key> <value>",
		Short: "Remember a profile fact",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("fact key must not be empty")
			}
			value := strings.Join(args[1:], " ")
			return a.withStore(cmd, func(st *store.Store) error {
				st.SetProfileFact(key, value)
				fmt.Fprintf(cmd.OutOrStdout(), "Remembered %s = %s\n", key, value)
				return nil
			})
		},
	}

	summary := &cobra.Command{
		Use:   "summary <text>",
		Short: "Replace the memory summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return a.withStore(cmd, func(st *store.Store) error {
				st.UpdateAIMemory(store.AIMemoryUpdate{MemorySummary: &text})
				fmt.Fprintln(cmd.OutOrStdout(), "Memory summary updated")
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget facts, summary and conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				st.ClearAIMemory()
				fmt.Fprintln(cmd.OutOrStdout(), "Memory cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(fact, summary, clearCmd)
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Therapy profile and preferences",
	}

	var (
		p    store.Profile
		lang string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields; omitted flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			return a.withStore(cmd, func(st *store.Store) error {
				snap := st.Snapshot()
				next := snap.Profile
				if f.Changed("target-low") {
					next.TargetLow = p.TargetLow
				}
				if f.Changed("target-high") {
					next.TargetHigh = p.TargetHigh
				}
				if f.Changed("carb-ratio") {
					next.CarbRatio = p.CarbRatio
				}
				if f.Changed("correction-factor") {
					next.CorrectionFactor = p.CorrectionFactor
				}
				if f.Changed("active-insulin") {
					next.ActiveInsulinMinutes = p.ActiveInsulinMinutes
				}
				if f.Changed("insulin-type") {
					next.InsulinType = p.InsulinType
				}
				if f.Changed("personalization") {
					next.PersonalizationEnabled = p.PersonalizationEnabled
				}
				st.SetProfile(next)
				if f.Changed("lang") {
					st.SetSettings(store.Settings{Language: domain.Lang(lang)})
				}

				low, high := next.TargetRange()
				fmt.Fprintf(cmd.OutOrStdout(), "Profile saved (target %d-%d mg/dL, language %s)\n", low, high, st.Settings().Language)
				return nil
			})
		},
	}
	set.Flags().IntVar(&p.TargetLow, "target-low", 0, "Lower bound of the target range (mg/dL)")
	set.Flags().IntVar(&p.TargetHigh, "target-high", 0, "Upper bound of the target range (mg/dL)")
	set.Flags().Float64Var(&p.CarbRatio, "carb-ratio", 0, "Grams of carbs covered by one unit")
	set.Flags().Float64Var(&p.CorrectionFactor, "correction-factor", 0, "mg/dL lowered by one unit")
	set.Flags().IntVar(&p.ActiveInsulinMinutes, "active-insulin", 0, "Active insulin duration (minutes)")
	set.Flags().StringVar(&p.InsulinType, "insulin-type", "", "Rapid-acting insulin name")
	set.Flags().BoolVar(&p.PersonalizationEnabled, "personalization", true, "Send recent context with chat requests")
	set.Flags().StringVar(&lang, "lang", "tr", "Response language (tr or en)")

	cmd.AddCommand(set)
	return cmd
}
