package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/models"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
	"github.com/noah-isme/sma-adp-scoring/internal/service"
)

func newSyncCmd() *cobra.Command {
	var student string
	cmd := &cobra.Command{
		Use:       "sync [homework|quiz|attendance|all]",
		Short:     "Run an extra-score sync once and print the result",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"homework", "quiz", "attendance", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var result models.SyncResult
			if student != "" {
				result = a.sync.SyncStudentExtraScores(cmd.Context(), student)
			} else {
				category := models.SyncCategoryAll
				if len(args) == 1 {
					category = models.SyncCategory(args[0])
				}
				result, err = a.sync.SyncCategory(cmd.Context(), category)
				if err != nil {
					return err
				}
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("sync %s failed: %s", result.Category, result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&student, "student", "", "sync a single student id instead of a category")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var (
		codes  []string
		legacy bool
		report string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Calculate scores for the given student codes and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			codes = append(codes, args...)
			if len(codes) == 0 {
				return fmt.Errorf("no student codes given")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			results := a.batch.ProcessStudents(cmd.Context(), codes, a.source)
			if report != "" {
				body, renderer, err := service.RenderScoreReport(results, report)
				if err != nil {
					return err
				}
				if out == "" {
					out = "scores." + renderer.Extension()
				}
				if err := os.WriteFile(out, body, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				a.logger.Sugar().Infow("score report written", "path", out, "students", len(results))
				return nil
			}
			if legacy {
				out := make(map[string]dto.LegacyResponse, len(results))
				for code, result := range results {
					out[code] = scoring.ToLegacyFormat(result, code, "")
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringSliceVar(&codes, "codes", nil, "comma separated student codes")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "print results in the legacy response shape")
	cmd.Flags().StringVar(&report, "report", "", "write a csv or pdf report instead of printing JSON")
	cmd.Flags().StringVar(&out, "out", "", "report output path (default scores.<format>)")
	return cmd
}

func newStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "Print the last sync time per category and whether a sync is needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			timestamps, err := a.sync.GetSyncTimestamps(cmd.Context())
			if err != nil {
				return err
			}
			needed := map[string]bool{}
			for _, category := range []models.SyncCategory{models.SyncCategoryHomework, models.SyncCategoryQuiz, models.SyncCategoryAttendance, models.SyncCategoryAll} {
				needed[string(category)] = service.IsSyncNeeded(timestamps.For(category), a.sync.MaxAgeMinutes())
			}
			return printJSON(cmd.OutOrStdout(), dto.SyncTimestampsResponse{
				Timestamps:    timestamps,
				SyncNeeded:    needed,
				MaxAgeMinutes: a.sync.MaxAgeMinutes(),
			})
		},
	}
}
