package main

import (
	"fmt"
	"time"

	"github.com/aristath/lottoscan/internal/report"
	"github.com/aristath/lottoscan/internal/work"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored progress and rank of every enabled analysis without scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			now := time.Now()
			reports := make([]report.Report, 0, len(env.analyses))
			for _, a := range env.analyses {
				target, err := work.ResolveTarget(a, now)
				if err != nil {
					return err
				}
				rec, err := env.store.Load(ctx, target.Key)
				if err != nil {
					return fmt.Errorf("analysis %s: %w", a.Name, err)
				}
				reports = append(reports, report.Build(a.Name, target.Key, target.Space.Size(), target.Tiers, rec))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return report.WriteJSON(out, reports)
			}
			for i, r := range reports {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := report.WriteText(out, r); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}
