package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
)

var tryCmd = &cobra.Command{
	Use:   "try [message...]",
	Short: "Print the reply for each message (args, or stdin lines)",
	Example: `  autoreply try "what is the price?"
  echo "is this recorded" | autoreply try`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resp, err := buildResponder(cfg)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			return answer(cmd.Context(), resp, cmd.OutOrStdout(), strings.Join(args, " "))
		}
		return answerLines(cmd.Context(), resp, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

type replier interface {
	Reply(ctx context.Context, text string) (responder.Reply, error)
}

var (
	labelRule    = color.New(color.FgGreen, color.Bold).SprintFunc()
	labelDefault = color.New(color.FgYellow, color.Bold).SprintFunc()
	labelAI      = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func answerLines(ctx context.Context, r replier, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := answer(ctx, r, out, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func answer(ctx context.Context, r replier, out io.Writer, text string) error {
	reply, err := r.Reply(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", label(reply), reply.Text)
	return nil
}

func label(r responder.Reply) string {
	switch r.Source {
	case responder.SourceRule:
		return labelRule("[rule:" + r.Keyword + "]")
	case responder.SourceAI:
		return labelAI("[ai]")
	default:
		return labelDefault("[default]")
	}
}
