package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atlasguide/atlas-go/pkg/chat"
	"github.com/atlasguide/atlas-go/pkg/chatstore"
	"github.com/atlasguide/atlas-go/pkg/gateway"
	"github.com/atlasguide/atlas-go/pkg/geo"
	"github.com/atlasguide/atlas-go/pkg/router"
	"github.com/atlasguide/atlas-go/pkg/uibus"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session against the backend",
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng := chat.NewEngine(gw)
		if err := eng.Hydrate(ctx); err != nil {
			log.Warn().Err(err).Msg("starting with an empty conversation, history unavailable")
		}

		features := geo.NewCollection()
		bus := uibus.NewBus()
		defer func() { _ = bus.Close() }()

		r := router.NewRouter(eng, features, bus)
		sess := router.NewSession(eng, r, gw)

		actions, err := bus.Subscribe(ctx)
		if err != nil {
			return errors.Wrap(err, "subscribe to ui actions")
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for a := range actions {
				switch a.Kind {
				case uibus.KindToast:
					fmt.Printf("[toast] %s\n", a.Message)
				case uibus.KindShowInfoSheet:
					fmt.Println("[ui] info sheet requested")
				}
			}
			return nil
		})
		g.Go(func() error {
			defer stop()
			return readLoop(ctx, sess, eng, features)
		})

		return g.Wait()
	},
}

func readLoop(ctx context.Context, sess *router.Session, eng *chat.Engine, features *geo.Collection) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sess.Send(ctx, scanner.Text()); err != nil {
			log.Error().Err(err).Msg("send failed")
		} else {
			printTranscriptTail(eng)
			if n := features.Len(); n > 0 {
				fmt.Printf("[map] %d feature(s)\n", n)
			}
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func printTranscriptTail(eng *chat.Engine) {
	messages := eng.Messages()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if !last.IsUser {
		fmt.Println(last.Text)
	}
}

// openGateway picks the HTTP gateway when a backend is configured, otherwise
// the local SQLite store.
func openGateway(cfg Config) (chat.Gateway, func(), error) {
	if cfg.BackendURL != "" {
		return gateway.NewClient(cfg.BackendURL), func() {}, nil
	}

	dsn, err := chatstore.SQLiteEventDSNForFile(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	store, err := chatstore.NewSQLiteEventStore(dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
