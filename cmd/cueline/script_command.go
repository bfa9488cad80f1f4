package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/config"
	"github.com/MrWong99/cueline/internal/script"
)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	var (
		pathFlag string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Parse the script and print its lines and scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			m, err := loadScript(cfg, pathFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"count":       m.Len(),
					"scene_count": m.SceneCount(),
					"lines":       m.Lines(),
				})
			}

			rows := make([][]string, 0, m.Len())
			for _, l := range m.Lines() {
				rows = append(rows, []string{strconv.Itoa(l.Index), strconv.Itoa(l.Scene), l.Text})
			}
			fmt.Fprintln(out, renderTable([]string{"Idx", "Scene", "Text"}, rows, []columnAlignment{alignRight, alignRight, alignLeft}))
			fmt.Fprintf(out, "%d lines, %d scenes\n", m.Len(), m.SceneCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&pathFlag, "path", "", "Script file (overrides script.path)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		pathFlag   string
		candidates string
		near       int
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "match TEXT...",
		Short: "Find the script line closest to TEXT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			m, err := loadScript(cfg, pathFlag)
			if err != nil {
				return err
			}
			scorer, ok := align.SelectScorer(cfg.Match.Scorer)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown scorer %q, using %s\n", cfg.Match.Scorer, scorer.Name())
			}

			var cands []int
			switch {
			case cmd.Flags().Changed("candidates"):
				cands, err = parseCandidates(candidates)
				if err != nil {
					return err
				}
			case cmd.Flags().Changed("near"):
				cands = align.Window(near, max(cfg.Match.WindowRadius, 1))
			}

			res := align.NewMatcher(m, scorer).Match(strings.Join(args, " "), cands)

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(res)
			}
			if !res.Matched() {
				fmt.Fprintln(out, "no match")
				return nil
			}
			i := *res.BestIdx
			fmt.Fprintf(out, "line %d (scene %d) %.2f%%: %s\n", i, m.Scene(i), res.ScorePct, m.Text(i))
			return nil
		},
	}
	cmd.Flags().StringVar(&pathFlag, "path", "", "Script file (overrides script.path)")
	cmd.Flags().StringVar(&candidates, "candidates", "", "Comma-separated line indices to restrict the search to")
	cmd.Flags().IntVar(&near, "near", 0, "Search a window around this line (radius from match.window_radius, at least 1)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the raw result as JSON")
	return cmd
}

func loadScript(cfg *config.Config, override string) (*script.Model, error) {
	path := cfg.Script.Path
	if override != "" {
		path = override
	}
	return script.LoadFile(path, script.WithChunkSize(cfg.Script.ChunkSize))
}

// parseCandidates reads "1,2,3". An empty string is an explicit empty set,
// which matches nothing.
func parseCandidates(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("candidates: %q is not a line index", part)
		}
		out = append(out, n)
	}
	return out, nil
}
