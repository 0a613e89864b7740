// Command billing-jobs runs the periodic billing sweeps once and exits. It is
// meant to be scheduled by cron or a Kubernetes CronJob.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/offertory/internal/app"
	"github.com/fatflowers/offertory/internal/app/service/billingjobs"
	"github.com/fatflowers/offertory/pkg/types"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "billing-jobs",
		Short:         "Run Offertory billing automation jobs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job names in run order",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, job := range billingjobs.Jobs() {
				fmt.Fprintln(cmd.OutOrStdout(), job)
			}
		},
	}
}

func runCmd() *cobra.Command {
	var (
		timeout time.Duration
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "run [job...]",
		Short: "Run the named jobs, or every job when none is named",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs := billingjobs.Jobs()
			if len(args) > 0 {
				jobs = make([]types.JobName, 0, len(args))
				for _, a := range args {
					jobs = append(jobs, types.JobName(a))
				}
			}

			var svc *billingjobs.Service
			fxApp := fx.New(app.CoreModule, fx.Populate(&svc), fx.NopLogger)
			startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
			defer cancel()
			if err := fxApp.Start(startCtx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
				defer cancel()
				_ = fxApp.Stop(stopCtx)
			}()

			ctx, cancelRun := context.WithTimeout(cmd.Context(), timeout)
			defer cancelRun()
			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, job := range jobs {
				sum, err := svc.Run(ctx, job)
				if err != nil {
					return fmt.Errorf("%s: %w", job, err)
				}
				if err := enc.Encode(sum); err != nil {
					return err
				}
				failed += len(sum.Errors)
			}
			if strict && failed > 0 {
				return fmt.Errorf("%d item(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall deadline for the run")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any item failed")
	return cmd
}
