package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redub/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect dubbing jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsDescribeCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobsList(statusFilter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, item := range resp.Items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Status,
						item.SourceLanguage + " -> " + item.TargetLanguage,
						strconv.Itoa(item.SegmentCount),
						formatDuration(item.DurationMS),
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Languages", "Segments", "Duration", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Filter by job status (repeatable)")
	return cmd
}

func newJobsDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(id)
				if err != nil {
					return err
				}
				item := resp.Item
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "  %-16s %d\n", "ID:", item.ID)
				fmt.Fprintf(out, "  %-16s %s\n", "Correlation:", item.CorrelationID)
				fmt.Fprintf(out, "  %-16s %s\n", "Status:", item.Status)
				fmt.Fprintf(out, "  %-16s %s -> %s\n", "Languages:", item.SourceLanguage, item.TargetLanguage)
				fmt.Fprintf(out, "  %-16s %s\n", "Source:", item.SourcePath)
				if item.OutputPath != "" {
					fmt.Fprintf(out, "  %-16s %s\n", "Output:", item.OutputPath)
				}
				fmt.Fprintf(out, "  %-16s %d segments, %d speakers\n", "Shape:", item.SegmentCount, item.SpeakerCount)
				if item.DurationMS > 0 {
					fmt.Fprintf(out, "  %-16s %s\n", "Duration:", formatDuration(item.DurationMS))
				}
				if len(item.FailedSegments) > 0 {
					fmt.Fprintf(out, "  %-16s %v\n", "Failed segments:", item.FailedSegments)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "  %-16s %s\n", "Error:", item.ErrorMessage)
				}
				fmt.Fprintf(out, "  %-16s %s\n", "Created:", item.CreatedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "  %-16s %s\n", "Updated:", item.UpdatedAt.Local().Format(time.DateTime))
				return nil
			})
		},
	}
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}
