package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stemsi/exstem-exam/internal/backend"
	"github.com/stemsi/exstem-exam/internal/examsession"
	"github.com/stemsi/exstem-exam/internal/logger"
	"github.com/stemsi/exstem-exam/internal/terminal"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Take an exam from the terminal",
		SilenceUsage: true,
	}
	root.AddCommand(takeCmd(), resultCmd())
	return root
}

func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("api-url", "http://localhost:8080", "Base URL of the exam server")
	f.String("token", "", "Student access token (or set EXAMCTL_TOKEN)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
}

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take <exam-id>",
		Short: "Start a timed exam session",
		Args:  cobra.ExactArgs(1),
		RunE:  runTake,
	}
	addClientFlags(cmd)
	return cmd
}

func resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <exam-id>",
		Short: "Show the stored result of a submitted exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runResult,
	}
	addClientFlags(cmd)
	return cmd
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examctl")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examctl")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: reading config file: %v\n", err)
		}
	}
	return v
}

func newClient(cmd *cobra.Command) (*backend.Client, zerolog.Logger, error) {
	v := viperForCmd(cmd)
	log := logger.New(os.Stderr, v.GetString("log-level"), "pretty")

	token := v.GetString("token")
	if token == "" {
		return nil, log, errors.New("a student token is required (--token or EXAMCTL_TOKEN)")
	}
	return backend.NewClient(v.GetString("api-url"), token, log), log, nil
}

func runTake(cmd *cobra.Command, args []string) error {
	client, log, err := newClient(cmd)
	if err != nil {
		return err
	}

	stdout := int(os.Stdout.Fd())
	color := term.IsTerminal(stdout)
	width := 0
	if color {
		if w, _, err := term.GetSize(stdout); err == nil {
			width = w
		}
	}
	runner := terminal.NewRunner(terminal.NewRenderer(os.Stdout, color, width))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	loader := examsession.NewLoader(client, client, log)
	sess, err := loader.Start(ctx, args[0], runner)
	if err != nil {
		return fmt.Errorf("could not open the exam, please try again later: %w", err)
	}
	defer sess.Close()

	// Ctrl-C is routed through the session's navigation guard instead of
	// killing the process.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	switch outcome := runner.Run(ctx, sess, lines, interrupts); outcome {
	case examsession.OutcomeSubmitted, examsession.OutcomeExited:
		return nil
	default:
		return fmt.Errorf("session ended: %s", outcome)
	}
}

func runResult(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}

	res, err := client.Result(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	verdict := "not passed"
	if res.Passed {
		verdict = "passed"
	}
	fmt.Printf("Score: %.1f (%s), %d of %d correct, submitted %s\n",
		res.Score, verdict, res.Correct, res.Total, res.SubmittedAt.Local().Format("2006-01-02 15:04"))
	return nil
}
