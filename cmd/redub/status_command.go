package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"redub/internal/ipc"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon answers on the control socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Ping()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pong (pid %d)\n", resp.PID)
				return nil
			})
		},
	}
}

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out, sectionHeader("Daemon", colorize))
	running := colorLabel("stopped", ansiRed, colorize)
	if status.Running {
		running = colorLabel("running", ansiGreen, colorize)
	}
	fmt.Fprintf(out, "  %-14s %s\n", "State:", running)
	fmt.Fprintf(out, "  %-14s %d\n", "PID:", status.PID)
	if status.Running {
		fmt.Fprintf(out, "  %-14s %s\n", "Uptime:", (time.Duration(status.UptimeSeconds) * time.Second).String())
	}
	fmt.Fprintf(out, "  %-14s %s\n", "Push bind:", status.PushBind)
	fmt.Fprintf(out, "  %-14s %s\n", "Pub bind:", status.PubBind)
	fmt.Fprintf(out, "  %-14s %d\n", "Subscribers:", status.Subscribers)
	fmt.Fprintf(out, "  %-14s %s\n", "Job DB:", status.JobDBPath)
	fmt.Fprintf(out, "  %-14s %s\n", "Lock file:", status.LockPath)

	fmt.Fprintln(out, sectionHeader("Speech synthesis", colorize))
	ttsState := status.TTSState
	if ttsState == "" {
		ttsState = "uninitialized"
	}
	fmt.Fprintf(out, "  %-14s %s\n", "State:", ttsState)
	if status.TTSBackend != "" {
		fmt.Fprintf(out, "  %-14s %s\n", "Backend:", status.TTSBackend)
	}

	if len(status.JobStats) > 0 {
		fmt.Fprintln(out, sectionHeader("Jobs", colorize))
		statuses := make([]string, 0, len(status.JobStats))
		for name := range status.JobStats {
			statuses = append(statuses, name)
		}
		sort.Strings(statuses)
		for _, name := range statuses {
			fmt.Fprintf(out, "  %-14s %d\n", name+":", status.JobStats[name])
		}
	}
}

func sectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func colorLabel(label, color string, colorize bool) string {
	if !colorize {
		return label
	}
	return color + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
