package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlasguide/atlas-go/pkg/chatwire"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Print the stored chat history in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		gw, cleanup, err := openGateway(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		events, err := gw.ChatEventsInOrder(context.Background())
		if err != nil {
			return err
		}

		for _, ev := range events {
			role := "assistant"
			if ev.Type == chatwire.EventChatSent {
				role = "user"
			}
			ts := time.UnixMilli(ev.CreatedAtMs).Format(time.RFC3339)
			fmt.Printf("%s %-9s %s\n", ts, role, ev.Text)
		}
		return nil
	},
}
