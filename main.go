package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/capcom6/convwatch/internal/client"
	"github.com/capcom6/convwatch/internal/command"
	"github.com/capcom6/convwatch/internal/config"
	"github.com/capcom6/convwatch/internal/dispatcher"
	"github.com/capcom6/convwatch/internal/logging"
	"github.com/capcom6/convwatch/internal/syncer"
	"github.com/capcom6/convwatch/internal/terminal"
	"github.com/capcom6/convwatch/internal/watcher"
	logger "github.com/go-core-fx/cli-logger"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

func main() {
	// a missing .env is fine, flags and the environment still apply
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatalln(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "convwatch",
		Usage:     "run a converter whenever watched files change",
		ArgsUsage: "<watched-path> <command> [command-args...]",
		Description: "Runs <command> for every created or changed file matching --filter. " +
			"An argument \"{}\" is replaced with the file path, otherwise the path is appended. " +
			"Deleting a file removes its derived file. Press 'q' to quit.",
		Version: config.Version(),
		Flags:   config.Flags(),
		// everything after <command> belongs to it, including dashed options
		StopOnNthArg: lo.ToPtr(2),
		Action:       run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if errors.Is(err, config.ErrInsufficientArgs) {
		// usage is not treated as a failure
		return cli.ShowAppHelp(cmd)
	}
	if err != nil {
		return err
	}
	ctx, err = setUpLogging(ctx, cfg)
	if err != nil {
		return err
	}
	log := logging.FromContext(ctx)

	commandPath, err := resolveCommand(cfg.Command)
	if err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	terminal.CancelOnKey(ctx, os.Stdin, terminal.QuitKey, cancel)

	var mirror dispatcher.Syncer
	if cfg.Mirror != "" {
		remoteClient, clientErr := client.New(cfg.Mirror)
		if clientErr != nil {
			return fmt.Errorf("can't create mirror client: %w", clientErr)
		}
		defer remoteClient.Close()

		mirror = syncer.New(cfg.WatchPath, remoteClient)
	}

	watch := watcher.New(cfg.WatchPath, watcher.Options{
		Recursive:    cfg.Recursive,
		Pattern:      cfg.Pattern,
		Excludes:     cfg.Excludes,
		RenameWindow: watcher.DefaultRenameWindow,
	})

	ch, err := watch.Watch(ctx, wg)
	if err != nil {
		return err
	}

	dispatch := dispatcher.New(dispatcher.Config{
		Command:    commandPath,
		Args:       cfg.CommandArgs,
		WorkDir:    cfg.WorkDir,
		DerivedExt: cfg.DerivedExt,
	}, command.NewExecRunner(cfg.Timeout), mirror)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := dispatch.Run(ctx, ch); runErr != nil {
			log.Error(ctx, "dispatcher stopped", runErr)
			cancel()
		}
	}()

	log.Info(ctx, "Watching... Press 'q' to quit.", logger.Fields{"path": cfg.WatchPath, "filter": cfg.Pattern})
	wg.Wait()

	log.Info(ctx, "Bye!")

	return nil
}

// resolveCommand makes a relative command path absolute, since the command
// runs in another working directory. Bare names are left for PATH lookup.
func resolveCommand(name string) (string, error) {
	if !strings.ContainsRune(name, filepath.Separator) && !strings.ContainsRune(name, '/') {
		return name, nil
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("can't resolve command %s: %w", name, err)
	}

	return abs, nil
}

func setUpLogging(ctx context.Context, cfg config.Config) (context.Context, error) {
	log, err := logging.New(cfg.Debug, nil)
	if err != nil {
		return ctx, err
	}

	return logger.WithComponent(logger.WithLogger(ctx, log), "main"), nil
}
