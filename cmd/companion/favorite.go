package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
)

func (a *app) favoriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite meal templates",
	}

	var n nutritionFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a favorite meal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := n.validate(); err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				f := st.AddFavoriteMeal(store.FavoriteMeal{
					Name:     n.name,
					CarbsG:   n.carbs,
					ProteinG: n.protein,
					FatG:     n.fat,
					FiberG:   n.fiber,
					Calories: n.calories,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Saved favorite %s id=%s\n", f.Name, f.ID)
				return nil
			})
		},
	}
	n.bind(add)

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Log a meal from a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				var fav *store.FavoriteMeal
				for _, f := range st.Favorites() {
					if f.ID == args[0] {
						fav = &f
						break
					}
				}
				if fav == nil || !st.UseFavoriteMeal(fav.ID) {
					fmt.Fprintf(cmd.OutOrStdout(), "No favorite with id %s\n", args[0])
					return nil
				}
				m := st.AddMealLog(store.MealLog{
					Name:     fav.Name,
					CarbsG:   fav.CarbsG,
					ProteinG: fav.ProteinG,
					FatG:     fav.FatG,
					FiberG:   fav.FiberG,
					Calories: fav.Calories,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%.0fg carbs) id=%s\n", m.Name, m.CarbsG, m.ID)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				if !st.RemoveFavoriteMeal(args[0]) {
					fmt.Fprintf(cmd.OutOrStdout(), "No favorite with id %s\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed favorite %s\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				favs := st.Favorites()
				if len(favs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No favorites")
					return nil
				}
				for _, f := range favs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s C:%.0fg used %d\n", f.ID, f.Name, f.CarbsG, f.UsageCount)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, use, remove, list)
	return cmd
}
