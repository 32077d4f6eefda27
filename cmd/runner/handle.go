package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"discord-code-runner/internal/config"
	"discord-code-runner/internal/model"
	"discord-code-runner/internal/orchestrator"
)

var handleCmd = &cobra.Command{
	Use:   "handle [message]",
	Short: "Run one message through the command handler and print the reply",
	Long: `handle feeds a single message (the argument, or stdin when absent) to the
same handler the server uses and prints the reply. No Discord token is needed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHandle,
}

func runHandle(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRuntime(configPath)
	if err != nil {
		return fmt.Errorf("load runtime: %w", err)
	}
	h, err := orchestrator.NewHandler(cfg, logger)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	reply, ok := h.Handle(cmd.Context(), model.Message{MessageID: "local", ChannelID: "local", Text: text})
	if !ok {
		return fmt.Errorf("no command recognized for variant %q", cfg.Variant)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
