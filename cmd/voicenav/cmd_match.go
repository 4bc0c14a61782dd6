package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/voicecmd"
	"github.com/MrWong99/voicenav/pkg/textmatch"
)

// errNoMatch makes the process exit non-zero when nothing matched, so the
// commands compose in shell scripts.
var errNoMatch = errors.New("no match")

func matchCmd() *cobra.Command {
	var (
		candidates     []string
		threshold      float64
		noPartial      bool
		noPreferLonger bool
		preprocess     bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "match TEXT",
		Short: "Match text against candidate phrases",
		Example: `  voicenav match "go to dashboard please" --candidate "go to dashboard" --threshold 0.6
  voicenav match "basic months" -C "basic math" -C algebra --preprocess`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("--threshold %v is out of range [0, 1]", threshold)
			}
			text := args[0]
			if preprocess {
				text = textmatch.PreprocessASRText(text)
			}
			res, ok := textmatch.FindBestCommandMatch(text, candidates,
				textmatch.WithThreshold(threshold),
				textmatch.WithAllowPartial(!noPartial),
				textmatch.WithPreferLonger(!noPreferLonger),
			)
			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, map[string]any{"matched": ok, "result": resultOrNil(res, ok)}); err != nil {
					return err
				}
			} else if ok {
				fmt.Fprintf(out, "%s\tscore=%.3f\tdistance=%d\twindow=%q\n",
					res.Command, res.Score, res.Distance, strings.Join(res.MatchedWindow, " "))
			}
			if !ok {
				return errNoMatch
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&candidates, "candidate", "C", nil, "candidate phrase (repeatable)")
	cmd.Flags().Float64Var(&threshold, "threshold", textmatch.DefaultThreshold, "minimum average similarity")
	cmd.Flags().BoolVar(&noPartial, "no-partial", false, "require windows as long as the candidate")
	cmd.Flags().BoolVar(&noPreferLonger, "no-prefer-longer", false, "break score ties by candidate order")
	cmd.Flags().BoolVar(&preprocess, "preprocess", false, "apply the built-in ASR corrections first")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func resultOrNil(res textmatch.MatchResult, ok bool) any {
	if !ok {
		return nil
	}
	return map[string]any{
		"command":        res.Command,
		"score":          res.Score,
		"distance":       res.Distance,
		"matched_window": res.MatchedWindow,
	}
}

func resolveCmd() *cobra.Command {
	var (
		configPath string
		page       string
		language   string
		lessons    []string
		options    []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "resolve TEXT",
		Short: "Resolve an utterance to a navigation command",
		Example: `  voicenav resolve "go to settings" --page dashboard
  voicenav resolve "koma baya" --language hausa
  voicenav resolve "i think london" --page lesson --option Paris --option London`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, perr := voicecmd.ParsePage(page)
			l, lerr := voicecmd.ParseLanguage(language)
			if err := errors.Join(perr, lerr); err != nil {
				return err
			}

			settings := voicecmd.DefaultSettings()
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if settings, err = cfg.ResolverSettings(); err != nil {
					return err
				}
			}

			res, ok := voicecmd.NewResolver(settings).Resolve(cmdContext(cmd), voicecmd.Request{
				Text:     args[0],
				Page:     p,
				Language: l,
				Lessons:  lessons,
				Options:  options,
			})

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, map[string]any{
					"resolved":     ok,
					"command":      res.Command,
					"arg":          res.Arg,
					"phrase":       res.Phrase,
					"method":       res.Method,
					"score":        res.Score,
					"corrected":    res.Corrected,
					"announcement": res.Announcement,
				}); err != nil {
					return err
				}
			} else if ok {
				fmt.Fprintf(out, "%s", res.Command)
				if res.Arg != "" {
					fmt.Fprintf(out, "(%s)", res.Arg)
				}
				fmt.Fprintf(out, "\tmethod=%s\tscore=%.3f\tphrase=%q\n", res.Method, res.Score, res.Phrase)
				fmt.Fprintln(out, res.Announcement)
			} else {
				fmt.Fprintln(out, res.Announcement)
			}
			if !ok {
				return errNoMatch
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "load matcher, corrections and vocabulary from this config file")
	cmd.Flags().StringVar(&page, "page", "", "page the utterance was spoken on (dashboard, topic, lesson, progress, settings, other)")
	cmd.Flags().StringVar(&language, "language", "", "session language (english, hausa, kanuri, arabic)")
	cmd.Flags().StringArrayVar(&lessons, "lesson", nil, "lesson title on the topic page (repeatable)")
	cmd.Flags().StringArrayVar(&options, "option", nil, "answer option on the lesson page (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

func missesCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "misses",
		Short: "List the most frequent unresolved utterances from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			store, err := config.DefaultRegistry().OpenJournal(ctx, cfg.Journal)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("journal is disabled in the config")
			}
			defer store.Close()

			misses, err := store.Misses(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range misses {
				fmt.Fprintf(out, "%6d  %s\n", m.Count, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of utterances to list")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
