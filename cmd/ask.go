package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beatsync/beatsync/internal/app"
	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/respond"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and print the streamed answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, question string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelWarn})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	chat := conversation.Chat{Messages: []conversation.Message{
		{Role: conversation.RoleUser, Content: question},
	}}

	events, err := a.Responder.Respond(ctx, chat)
	if err != nil {
		return fmt.Errorf("starting turn: %w", err)
	}

	var citations []conversation.Citation
	for ev := range events {
		switch ev.Type {
		case respond.EventToken:
			fmt.Print(ev.Delta)
		case respond.EventCitation:
			citations = append(citations, *ev.Citation)
		case respond.EventError:
			fmt.Println(ev.Message)
		case respond.EventDone:
			fmt.Println()
		}
	}

	if len(citations) > 0 {
		fmt.Fprintln(os.Stdout, "\nSources:")
		for _, c := range citations {
			title := c.SourceRef
			if title == "" {
				title = config.EmptyCitationMessage
			}
			fmt.Fprintf(os.Stdout, "  [%d] %s\n", c.Index, title)
		}
	}

	return nil
}
