package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
)

type nutritionFlags struct {
	name     string
	carbs    float64
	protein  float64
	fat      float64
	fiber    float64
	calories float64
}

func (n *nutritionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&n.name, "name", "", "Meal name")
	cmd.Flags().Float64Var(&n.carbs, "carbs", 0, "Carbohydrates (g)")
	cmd.Flags().Float64Var(&n.protein, "protein", 0, "Protein (g)")
	cmd.Flags().Float64Var(&n.fat, "fat", 0, "Fat (g)")
	cmd.Flags().Float64Var(&n.fiber, "fiber", 0, "Fiber (g)")
	cmd.Flags().Float64Var(&n.calories, "calories", 0, "Energy (kcal)")
	_ = cmd.MarkFlagRequired("name")
}

func (n *nutritionFlags) validate() error {
	if strings.TrimSpace(n.name) == "" {
		return fmt.Errorf("--name must not be empty")
	}
	for _, v := range []float64{n.carbs, n.protein, n.fat, n.fiber, n.calories} {
		if v < 0 {
			return fmt.Errorf("nutrition values must be >= 0")
		}
	}
	return nil
}

func (a *app) mealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meal",
		Short: "Log meals",
	}

	var (
		n       nutritionFlags
		insulin float64
		at      string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Log a meal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := n.validate(); err != nil {
				return err
			}
			ts, err := parseAt(at, time.Now())
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				m := st.AddMealLog(store.MealLog{
					Timestamp:    ts,
					Name:         n.name,
					CarbsG:       n.carbs,
					ProteinG:     n.protein,
					FatG:         n.fat,
					FiberG:       n.fiber,
					Calories:     n.calories,
					InsulinUnits: insulin,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%.0fg carbs) id=%s\n", m.Name, m.CarbsG, m.ID)
				return nil
			})
		},
	}
	n.bind(add)
	add.Flags().Float64Var(&insulin, "insulin", 0, "Insulin taken (units)")
	add.Flags().StringVar(&at, "at", "", "Meal time (YYYY-MM-DD HH:MM or RFC3339, default now)")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent meals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be > 0")
			}
			return a.withStore(cmd, func(st *store.Store) error {
				meals := st.Meals()
				if len(meals) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No meals logged")
					return nil
				}
				if len(meals) > limit {
					meals = meals[:limit]
				}
				for _, m := range meals {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s C:%.0fg P:%.0fg F:%.0fg %.0fkcal\n",
						m.Timestamp.Local().Format(dateTimeLayout), m.Name, m.CarbsG, m.ProteinG, m.FatG, m.Calories)
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 10, "Max meals to show")

	cmd.AddCommand(add, list, a.analyzeCmd())
	return cmd
}
