package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/media"
	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/tui"
)

const commandTimeout = 30 * time.Second

type startOptions struct {
	view     tui.View
	solution string
	product  string
}

var solutionsCmd = &cobra.Command{
	Use:   "solutions",
	Short: "List the portal's solutions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, startOptions{view: tui.ViewSolutions})
	},
}

var solutionProduct string

var solutionCmd = &cobra.Command{
	Use:   "solution <name>",
	Short: "Open the page of a solution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, startOptions{view: tui.ViewSolution, solution: args[0], product: solutionProduct})
	},
}

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "Open the community page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, startOptions{view: tui.ViewCommunity})
	},
}

var (
	searchGroup string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <keyphrase>",
	Short: "Print the preview results for a keyphrase",
	Long: `search runs the same queries as the search view and prints the
results and the keyphrase suggestions. With --group the results of one
suggestion are printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(commandContext(cmd), commandTimeout)
		defer cancel()

		rt, err := openRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		out, err := runSearch(ctx, rt.search, cfg, strings.Join(args, " "), searchGroup)
		if err != nil {
			return err
		}
		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printSearch(cmd.OutOrStdout(), out, cfg.UI.DescriptionLimit)
		return nil
	},
}

type searchOutput struct {
	Keyphrase   string               `json:"keyphrase"`
	Group       string               `json:"group,omitempty"`
	Items       []preview.ResultItem `json:"items"`
	Suggestions []string             `json:"suggestions"`
}

// runSearch drives a widget the way the search view does: commit the
// keyphrase, complete the query and, when group is set, hover that
// suggestion.
func runSearch(ctx context.Context, capability preview.Capability, c *config.Config, keyphrase, group string) (*searchOutput, error) {
	w := preview.New(capability, preview.Options{
		ItemsPerPage:    c.Search.ItemsPerPage,
		Suggestions:     c.Search.Suggestions,
		FilterAttribute: c.Search.FilterAttribute,
	})

	keyphrase = strings.Join(strings.Fields(keyphrase), " ")
	t, ok := w.KeyUp(keyphrase)
	if !ok {
		t = w.Init()
	}
	w.Complete(w.Fetch(ctx, t))
	if res := w.Result(); res.Status == preview.StatusFailed {
		return nil, fmt.Errorf("search failed: %w", res.Err)
	}

	out := &searchOutput{Keyphrase: keyphrase, Suggestions: []string{}}
	for _, g := range w.Groups() {
		out.Suggestions = append(out.Suggestions, g.Candidates...)
	}

	if group == "" {
		out.Items = w.Result().Articles()
		return out, nil
	}

	key := preview.GroupKey(preview.KeyphraseGroupID, group)
	gt, ok := w.Hover(key)
	if !ok {
		return nil, fmt.Errorf("%q is not a suggestion for %q", group, keyphrase)
	}
	w.CompleteGroup(w.FetchGroup(ctx, gt))
	panel, _ := w.Menu().Panel(key)
	if panel.Err != nil {
		return nil, fmt.Errorf("suggestion %q: %w", group, panel.Err)
	}
	out.Group = group
	out.Items = panel.Items
	return out, nil
}

func printSearch(w io.Writer, out *searchOutput, descLimit int) {
	if len(out.Items) == 0 {
		fmt.Fprintln(w, tui.MsgNoResults)
	}
	for _, it := range out.Items {
		fmt.Fprintf(w, "%s", it.Name)
		if it.Type != "" {
			fmt.Fprintf(w, " [%s]", it.Type)
		}
		if it.IndexName != "" && it.SiteName != "" {
			fmt.Fprintf(w, " (%s)", it.SiteName)
		}
		fmt.Fprintln(w)
		if it.Description != "" {
			fmt.Fprintf(w, "  %s\n", preview.Truncate(strings.Join(strings.Fields(it.Description), " "), descLimit, true))
		}
		if it.URL != "" {
			fmt.Fprintf(w, "  %s\n", it.URL)
		}
	}
	if out.Group == "" && len(out.Suggestions) > 0 {
		fmt.Fprintf(w, "\n%s: %s\n", preview.SuggestionsTitle, strings.Join(out.Suggestions, ", "))
	}
}

var indexWatch bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index from the content directory",
	Long: `index replaces the indexed documents with the current pages and
removes stored feeds no page refers to any more. With --watch it keeps
running and reindexes whenever a page changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := syncIndex(ctx, rt, cmd.OutOrStdout()); err != nil {
			return err
		}
		if !indexWatch {
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", cfg.Content.Dir)
		return rt.pages.Watch(ctx, cfg.Content.WatchDelay, func(err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Reload failed: %v\n", err)
				return
			}
			if err := syncIndex(ctx, rt, cmd.OutOrStdout()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Index failed: %v\n", err)
			}
		})
	},
}

func syncIndex(ctx context.Context, rt *runtime, w io.Writer) error {
	n, err := rt.reindex(ctx)
	if err != nil {
		return err
	}
	removed, err := rt.feeds.Prune(rt.handles())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Indexed %d pages", n)
	if removed > 0 {
		fmt.Fprintf(w, ", removed %d unused feeds", removed)
	}
	fmt.Fprintln(w)
	return nil
}

var (
	feedsForce  bool
	feedsStored bool
)

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Refresh the feeds referenced by the content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		rt.feeds.SetForceRefresh(feedsForce)
		if feedsStored {
			return rt.feeds.RefreshAllFeeds(ctx)
		}
		handles := rt.handles()
		results, err := rt.feeds.Feeds(ctx, handles)
		for i, res := range results {
			switch {
			case res == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", handles[i])
			case res.Stale:
				fmt.Fprintf(cmd.OutOrStdout(), "~ %s: %d posts (cached)\n", handles[i], len(res.Posts))
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d posts\n", handles[i], len(res.Posts))
			}
		}
		if err != nil {
			return fmt.Errorf("refreshing feeds: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Show version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", tui.AppName, Version)
		fmt.Println("Developer portal search")
		fmt.Println("github.com/pders01/devportal")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:         "generate [path]",
	Short:       "Write the default configuration",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		path := config.DefaultPath()
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.GenerateDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Generated default configuration at: %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.TOML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	solutionCmd.Flags().StringVarP(&solutionProduct, "product", "p", "", "only show pages of this product")
	searchCmd.Flags().StringVarP(&searchGroup, "group", "g", "", "print the results of this suggestion")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print JSON")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "reindex when the content changes")
	feedsCmd.Flags().BoolVarP(&feedsForce, "force", "f", false, "ignore the refresh interval and cache headers")
	feedsCmd.Flags().BoolVar(&feedsStored, "stored", false, "refresh every stored feed instead of the ones the content refers to")

	configCmd.AddCommand(configGenCmd, configShowCmd)
}

// runTUI opens the runtime and runs the terminal UI on the given view.
func runTUI(cmd *cobra.Command, start startOptions) error {
	if !quiet {
		tui.ShowBanner(cmd.OutOrStdout(), Version)
	}

	rt, err := openRuntime(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	app := tui.NewApp(tui.Options{
		Config:   cfg,
		Content:  rt.pages,
		Search:   rt.search,
		Feeds:    rt.feeds,
		Opener:   media.NewLauncher(cfg),
		Start:    start.view,
		Solution: start.solution,
		Product:  start.product,
	})

	debuglog.Infof("starting %s view", start.view)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// commandContext returns the command's context, which is unset when a
// command is run without Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
