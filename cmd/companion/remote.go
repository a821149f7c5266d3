package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vladimiradmaev/diabetes-companion/internal/apiclient"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
	"github.com/vladimiradmaev/diabetes-companion/internal/safety"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
)

// maxChatHistory bounds the turns kept locally and replayed to the assistant.
const maxChatHistory = 20

func limitReachedMessage(lang domain.Lang, f domain.Feature) string {
	if lang == domain.LangEN {
		return fmt.Sprintf("Daily %s limit reached (0 remaining). Upgrade to Pro for more.", f)
	}
	return fmt.Sprintf("Günlük %s limitine ulaştınız (kalan 0). Daha fazlası için Pro'ya geçin.", f)
}

// quotaRejected reports whether err is the server refusing a call over quota.
func quotaRejected(err error) (*apiclient.Error, bool) {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Kind == string(apperrors.KindQuotaExceeded) {
		return apiErr, true
	}
	return nil, false
}

func (a *app) entitlementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entitlement",
		Short: "Plan, quotas and today's usage",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the locally cached entitlement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				return printJSON(cmd.OutOrStdout(), st.Entitlement())
			})
		},
	}
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the entitlement from the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				e, err := a.client().Entitlement(cmd.Context())
				if err != nil {
					return err
				}
				st.SetEntitlement(e)
				return printJSON(cmd.OutOrStdout(), st.Entitlement())
			})
		},
	}
	cmd.AddCommand(show, refresh)
	return cmd
}

func (a *app) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the diabetes assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return fmt.Errorf("message must not be empty")
			}
			return a.withStore(cmd, func(st *store.Store) error {
				lang := st.Settings().Language
				// Crisis messages get the static resources without reaching the API or quota.
				if safety.IsCrisis(message) {
					fmt.Fprintln(cmd.OutOrStdout(), safety.CrisisMessage(lang))
					return nil
				}
				if !st.CanUse(domain.FeatureChat) {
					fmt.Fprintln(cmd.OutOrStdout(), limitReachedMessage(lang, domain.FeatureChat))
					return nil
				}

				history := st.Snapshot().AIMemory.ConversationHistory
				msgs := make([]domain.ChatMessage, 0, len(history)+1)
				for _, turn := range history {
					msgs = append(msgs, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
				}
				msgs = append(msgs, domain.ChatMessage{Role: "user", Content: message})

				req := domain.ChatRequest{Messages: msgs, Lang: string(lang)}
				if rc := st.GetRecentContext(); !rc.IsEmpty() {
					req.RecentContext = &rc
				}

				reply, err := a.client().Chat(cmd.Context(), req)
				if apiErr, ok := quotaRejected(err); ok {
					fmt.Fprintln(cmd.OutOrStdout(), apiErr.Message)
					return nil
				}
				if err != nil {
					return err
				}
				if reply == safety.CrisisMessage(domain.ParseLang(req.Lang)) {
					fmt.Fprintln(cmd.OutOrStdout(), reply)
					return nil
				}

				st.RecordUsage(domain.FeatureChat)
				now := time.Now()
				history = append(history,
					store.ConversationTurn{Role: "user", Content: message, Timestamp: now},
					store.ConversationTurn{Role: "assistant", Content: reply, Timestamp: now},
				)
				if len(history) > maxChatHistory {
					history = history[len(history)-maxChatHistory:]
				}
				st.UpdateAIMemory(store.AIMemoryUpdate{ConversationHistory: history})

				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	var logMeal bool
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Estimate the nutrition of a meal photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			mime := http.DetectContentType(raw)
			if !strings.HasPrefix(mime, "image/") {
				return fmt.Errorf("%s is not an image (%s)", args[0], mime)
			}
			dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)

			return a.withStore(cmd, func(st *store.Store) error {
				lang := st.Settings().Language
				if !st.CanUse(domain.FeatureVision) {
					fmt.Fprintln(cmd.OutOrStdout(), limitReachedMessage(lang, domain.FeatureVision))
					return nil
				}

				result, err := a.client().AnalyzeMeal(cmd.Context(), domain.VisionRequest{ImageDataURL: dataURL, Lang: string(lang)})
				if apiErr, ok := quotaRejected(err); ok {
					fmt.Fprintln(cmd.OutOrStdout(), apiErr.Message)
					return nil
				}
				if err != nil {
					return err
				}
				st.RecordUsage(domain.FeatureVision)

				if logMeal {
					names := make([]string, 0, len(result.Items))
					for _, item := range result.Items {
						names = append(names, item.Name)
					}
					name := strings.Join(names, ", ")
					if name == "" {
						name = "Photo meal"
					}
					st.AddMealLog(store.MealLog{
						Name:     name,
						CarbsG:   result.TotalCarbsG,
						ProteinG: result.TotalProteinG,
						FatG:     result.TotalFatG,
						FiberG:   result.TotalFiberG,
						Calories: result.TotalCalories,
					})
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&logMeal, "log", false, "Also log the estimated totals as a meal")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Erase all personal data on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				st.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out; local data cleared")
				return nil
			})
		},
	}
}
