package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/moviedex/internal/app"
	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	"github.com/kailas-cloud/moviedex/internal/version"
)

const defaultPollInterval = 100 * time.Millisecond

type buildFunc func(ctx context.Context, env string) (*app.App, error)

func newRootCmd(build buildFunc) *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:          "moviectl",
		Short:        "moviedex command line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "config environment (config/<env>.yaml)")

	// withApp builds the services for one command invocation.
	var withApp appRunner = func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a, args)
		}
	}

	root.AddCommand(
		newSeedCmd(withApp),
		newSearchCmd(withApp),
		newHealthCmd(withApp),
		newTaskCmd(withApp),
		newVersionCmd(),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error

func newSeedCmd(withApp appRunner) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the six demo movies",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			ack, err := a.Movies.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if wait && !ack.Status.Finished() {
				ack, err = a.Gateway.WaitForTask(cmd.Context(), ack.TaskUID, defaultPollInterval)
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Movies have been added. task=%d status=%s\n", ack.TaskUID, ack.Status)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the backend finished indexing")
	return cmd
}

func newSearchCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search movies",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			resp, err := a.Movies.Search(cmd.Context(), request.New(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}),
	}
}

func newHealthCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend, cache and embedding provider",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			report := a.Health.Check(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Status != healthuc.Healthy {
				return fmt.Errorf("status %s", report.Status)
			}
			return nil
		}),
	}
}

func newTaskCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "task <uid>",
		Short: "Show an indexing task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			uid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || uid < 0 {
				return fmt.Errorf("task uid must be a non-negative integer, got %q", args[0])
			}
			ack, err := a.Movies.Task(cmd.Context(), uid)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), taskView{TaskUID: ack.TaskUID, Status: ack.Status})
		}),
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moviectl %s\n", version.String())
		},
	}
}

type taskView struct {
	TaskUID int64             `json:"taskUid"`
	Status  domain.TaskStatus `json:"status"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
