package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bdougie/audioscribe/internal/storage"
	"github.com/bdougie/audioscribe/internal/ui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <image>",
	Short: "Describe one photo (or a still from a video) and read it aloud",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.upload(ctx, ui.CleanPath(args[0])); err != nil {
			return err
		}
		fmt.Println(a.controller.LastDescription())
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Describe photos interactively, with replay",
	Long: `Start an interactive session. Type or drop the path of a photo and press
enter to hear its description. After a description has been read, press
r to hear it again. Type q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		logger.Info("session started", "backend", a.client.Endpoint(), "engine", a.speaker.Engine().Name())
		a.terminal.PrintHelp()

		err = a.terminal.Run(ctx, os.Stdin, a.controller, a.loader.Load)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the description service is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := a.client.Ping(ctx); err != nil {
			return fmt.Errorf("description service at %s is not reachable: %w", a.client.Endpoint(), err)
		}
		fmt.Printf("Description service at %s is up. Speech engine: %s\n", a.client.Endpoint(), a.speaker.Engine().Name())
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Work with the description journal",
}

var historyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the PostgreSQL journal schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Journal.DatabaseURL == "" {
			return errors.New("--database-url or AUDIOSCRIBE_DATABASE_URL is required")
		}
		if err := storage.InitSchema(cmd.Context(), cfg.Journal.DatabaseURL); err != nil {
			return err
		}
		logger.Info("journal schema ready")
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find past descriptions similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Journal.DatabaseURL == "" {
			return errors.New("--database-url or AUDIOSCRIBE_DATABASE_URL is required")
		}

		var closers []func()
		defer func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}()
		pg, err := openPostgres(cmd.Context(), cfg, logger, &closers)
		if err != nil {
			return err
		}

		results, err := pg.SearchSimilar(cmd.Context(), strings.Join(args, " "), searchLimitFlag)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matching descriptions.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.3f  %s  %s\n    %s\n", r.Similarity, r.CreatedAt.Local().Format(time.DateTime), r.Image, r.Description)
		}
		return nil
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the JSON journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Journal.Dir == "" {
			return errors.New("--journal-dir or AUDIOSCRIBE_JOURNAL_DIR is required")
		}

		records, err := storage.ReadFileJournal(cfg.Journal.Dir)
		if err != nil {
			return err
		}
		if listLimitFlag > 0 && len(records) > listLimitFlag {
			records = records[len(records)-listLimitFlag:]
		}
		for _, r := range records {
			fmt.Printf("%s  %s\n    %s\n", r.CreatedAt.Local().Format(time.DateTime), r.Image, r.Description)
		}
		return nil
	},
}

func init() {
	historySearchCmd.Flags().IntVarP(&searchLimitFlag, "limit", "n", 5, "Maximum results")
	historyListCmd.Flags().IntVarP(&listLimitFlag, "limit", "n", 0, "Only the most recent N entries (0 = all)")
	historyCmd.AddCommand(historyInitCmd, historySearchCmd, historyListCmd)
}
