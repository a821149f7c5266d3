package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
)

func (a *app) glucoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glucose",
		Short: "Record and review glucose readings",
	}

	var at, source string
	add := &cobra.Command{
		Use:   "add <mg/dL>",
		Short: "Add a glucose reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseGlucose(args[0])
			if err != nil {
				return err
			}
			ts, err := parseAt(at, time.Now())
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				if !st.AddGlucoseReading(store.GlucoseReading{Timestamp: ts, Value: value, Source: source}) {
					fmt.Fprintln(cmd.OutOrStdout(), "Skipped: another reading exists within 5 minutes")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %.0f mg/dL at %s\n", value, ts.Format(dateTimeLayout))
				return nil
			})
		},
	}
	add.Flags().StringVar(&at, "at", "", "Reading time (YYYY-MM-DD HH:MM or RFC3339, default now)")
	add.Flags().StringVar(&source, "source", "manual", "Reading source")

	today := &cobra.Command{
		Use:   "today",
		Short: "List today's readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				readings := st.GetTodayGlucose()
				if len(readings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No readings today")
					return nil
				}
				for _, r := range readings {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %4.0f mg/dL  %s\n", r.Timestamp.Local().Format("15:04"), r.Value, r.Source)
				}
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Merge readings exported from a health platform",
		Long:  "Reads a JSON array of {\"timestamp\",\"value\",\"source\"} objects. Readings whose exact timestamp is already stored are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var readings []store.GlucoseReading
			if err := json.Unmarshal(raw, &readings); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}
			return a.withStore(cmd, func(st *store.Store) error {
				added := st.SyncHealthData(readings)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d readings\n", added, len(readings))
				return nil
			})
		},
	}

	cmd.AddCommand(add, today, importCmd)
	return cmd
}
