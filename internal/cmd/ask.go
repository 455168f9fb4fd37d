package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lawgpt/internal/lifecycle"
	"lawgpt/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	loader := lifecycle.NewLoader[*app]()
	snap := loader.Load(ctx, func(ctx context.Context) (*app, error) {
		return buildApp(ctx, cfg)
	})
	if snap.State != lifecycle.Ready {
		return snap.Err
	}
	a := snap.Value
	defer a.Close()

	answer, err := a.Query(ctx, question)
	if err != nil {
		fmt.Fprintln(os.Stdout, rag.Apology(err))
		return err
	}

	fmt.Fprintf(os.Stdout, "%s\n\n", answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(os.Stdout, "Sources:")
		for _, h := range answer.Sources {
			fmt.Fprintf(os.Stdout, "  - %s, page %d (score %.3f)\n", h.Source, h.PageNumber, h.Score)
		}
	}
	return nil
}
