package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/memchat/internal/judge"
)

var judgeDemo bool

// classifier is the part of judge.Judge the command uses.
type classifier interface {
	Classify(ctx context.Context, raw string) (*judge.Verdict, error)
}

var judgeCmd = &cobra.Command{
	Use:   "judge [file|-]",
	Short: "Classify an email as IMPORTANT or JUNK",
	Long: `Classify an email read from a file, or from stdin when the argument is "-"
or missing. The email may be plain text or a full RFC 5322 message.

Examples:
  memchat judge message.eml
  cat message.eml | memchat judge -
  memchat judge --demo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !judgeDemo && len(args) == 1 && args[0] != "-" {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("read email: %w", err)
			}
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("Failed to close resources", "error", closeErr)
			}
		}()

		out := cmd.OutOrStdout()
		if judgeDemo {
			return runJudgeDemo(ctx, a.judge, out)
		}

		raw, err := readEmail(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		return runJudge(ctx, a.judge, raw, out)
	},
}

func init() {
	judgeCmd.Flags().BoolVar(&judgeDemo, "demo", false, "classify the built-in sample emails")
}

func readEmail(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read email from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read email: %w", err)
	}
	return string(data), nil
}

func runJudge(ctx context.Context, c classifier, raw string, out io.Writer) error {
	verdict, err := c.Classify(ctx, raw)
	if err != nil {
		return fmt.Errorf("classify email: %w", err)
	}
	printVerdict(out, verdict)
	return nil
}

func runJudgeDemo(ctx context.Context, c classifier, out io.Writer) error {
	for i, sample := range judge.Samples {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "=== %s ===\n", sample.Name)
		if err := runJudge(ctx, c, sample.Email, out); err != nil {
			return fmt.Errorf("%s: %w", sample.Name, err)
		}
	}
	return nil
}

func printVerdict(out io.Writer, v *judge.Verdict) {
	fmt.Fprintf(out, "Label: %s\n", v.Label)
	if v.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", v.Summary)
	}
	if v.Reasoning != "" {
		fmt.Fprintf(out, "Reasoning: %s\n", v.Reasoning)
	}
}
