package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/app"
	"github.com/samvad-hq/bulkcheck/internal/config"
	"github.com/samvad-hq/bulkcheck/internal/domain"
	"github.com/samvad-hq/bulkcheck/pkg/bulkcheck"
	"github.com/spf13/cobra"
)

// demoNumbers are checked when run is given no numbers.
var demoNumbers = []string{"+1234567890", "+9876543210", "+1122334455"}

func newRootCmd(rt *app.Runtime, cfg *config.Config, out io.Writer) *cobra.Command {
	var providerID string

	var command = &cobra.Command{
		Use:           "bulkcheck",
		Short:         "Bulk phone number checks against the checknumber task API",
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
	command.SetOut(out)
	command.PersistentFlags().StringVar(&providerID, "provider", cfg.Provider, "Check provider id")

	command.AddCommand(runCmd(rt, cfg, &providerID))
	command.AddCommand(uploadCmd(rt, &providerID))
	command.AddCommand(statusCmd(rt, &providerID))
	command.AddCommand(pollCmd(rt, &providerID))
	command.AddCommand(downloadCmd(rt, cfg, &providerID))
	command.AddCommand(historyCmd(rt))

	return command
}

func runCmd(rt *app.Runtime, cfg *config.Config, providerID *string) *cobra.Command {
	var (
		input     string
		output    string
		interval  time.Duration
		keepInput bool
	)

	var command = &cobra.Command{
		Use:   "run [numbers...]",
		Short: "Create the input file, upload it, wait for the task and download the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers := args
			if len(numbers) == 0 {
				numbers = demoNumbers
			}
			out := cmd.OutOrStdout()

			res, err := rt.Run(cmd.Context(), app.RunRequest{
				ProviderID: *providerID,
				Numbers:    numbers,
				InputPath:  input,
				OutputPath: output,
				Interval:   interval,
				KeepInput:  keepInput,
				Progress:   printProgress(out),
				Submitted: func(task domain.Task) {
					fmt.Fprintf(out, "Task ID: %s\n", task.TaskID)
					fmt.Fprintf(out, "Initial Status: %s\n", task.Status)
				},
			})
			if errors.Is(err, bulkcheck.ErrTaskFailed) {
				fmt.Fprintln(out, "Task failed")
			}
			if err != nil {
				return err
			}

			if res.Task.HasResult() {
				fmt.Fprintf(out, "Results available at: %s\n", res.Task.ResultURL)
				fmt.Fprintf(out, "Results saved to: %s\n", res.OutputPath)
			}
			return nil
		},
	}

	command.Flags().StringVar(&input, "input", cfg.InputFile, "Path of the numbers file to create")
	command.Flags().StringVar(&output, "output", cfg.OutputFile, "Path to save the results file")
	command.Flags().DurationVar(&interval, "interval", cfg.PollInterval, "Delay between status checks")
	command.Flags().BoolVar(&keepInput, "keep-input", cfg.KeepInput, "Keep the numbers file after a successful run")

	return command
}

func uploadCmd(rt *app.Runtime, providerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a numbers file and print the new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := rt.Upload(cmd.Context(), *providerID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task ID: %s\n", task.TaskID)
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", task.Status)
			return nil
		},
	}
}

func statusCmd(rt *app.Runtime, providerID *string) *cobra.Command {
	var userID string

	var command = &cobra.Command{
		Use:   "status <task-id>",
		Short: "Check a task once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := rt.Status(cmd.Context(), *providerID, args[0], userID)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
	command.Flags().StringVar(&userID, "user-id", "", "User id sent with the status check")
	return command
}

func pollCmd(rt *app.Runtime, providerID *string) *cobra.Command {
	var (
		userID   string
		interval time.Duration
	)

	var command = &cobra.Command{
		Use:   "poll <task-id>",
		Short: "Wait for a task to be exported or to fail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			task, err := rt.Poll(cmd.Context(), *providerID, args[0], userID, interval, printProgress(out))
			if errors.Is(err, bulkcheck.ErrTaskFailed) {
				fmt.Fprintln(out, "Task failed")
			}
			if err != nil {
				return err
			}
			if task.HasResult() {
				fmt.Fprintf(out, "Results available at: %s\n", task.ResultURL)
			}
			return nil
		},
	}
	command.Flags().StringVar(&userID, "user-id", "", "User id sent with status checks")
	command.Flags().DurationVar(&interval, "interval", 0, "Delay between status checks (default from config)")
	return command
}

func downloadCmd(rt *app.Runtime, cfg *config.Config, providerID *string) *cobra.Command {
	var output string

	var command = &cobra.Command{
		Use:   "download <url>",
		Short: "Download a results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.Download(cmd.Context(), *providerID, args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Results saved to: %s\n", path)
			return nil
		},
	}
	command.Flags().StringVar(&output, "output", cfg.OutputFile, "Path to save the results file")
	return command
}

func historyCmd(rt *app.Runtime) *cobra.Command {
	var limit int

	var command = &cobra.Command{
		Use:   "history",
		Short: "List recently submitted tasks from the local journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := rt.History(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK ID\tPROVIDER\tSTATUS\tSUCCESS/TOTAL\tSUBMITTED\tOUTPUT")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					rec.Task.TaskID,
					rec.ProviderID,
					rec.Task.Status,
					rec.Task.Success,
					rec.Task.Total,
					rec.SubmittedAt.Local().Format(time.DateTime),
					rec.OutputPath,
				)
			}
			return tw.Flush()
		},
	}
	command.Flags().IntVar(&limit, "limit", 20, "Maximum number of tasks to list (0 for all)")
	return command
}

func printProgress(out io.Writer) bulkcheck.ProgressFunc {
	return func(task domain.Task) {
		fmt.Fprintf(out, "Status: %s, Success: %d, Total: %d\n", task.Status, task.Success, task.Total)
	}
}

func printTask(out io.Writer, task domain.Task) {
	printProgress(out)(task)
	if task.HasResult() {
		fmt.Fprintf(out, "Results available at: %s\n", task.ResultURL)
	}
}
