package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/k3a/html2text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BrianElionDev/Loomify/internal/analyzer"
	"github.com/BrianElionDev/Loomify/internal/cache"
	"github.com/BrianElionDev/Loomify/internal/config"
	"github.com/BrianElionDev/Loomify/internal/db"
	"github.com/BrianElionDev/Loomify/internal/domain"
	"github.com/BrianElionDev/Loomify/internal/migrate"
	"github.com/BrianElionDev/Loomify/internal/repo"
	"github.com/BrianElionDev/Loomify/internal/server"
	"github.com/BrianElionDev/Loomify/internal/session"
	"github.com/BrianElionDev/Loomify/internal/views"
	loomifysdk "github.com/BrianElionDev/Loomify/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "loomify",
	Short: "Loomify CLI",
	Long: `Loomify tracks AI-extracted tasks from analyzed call recordings.
- Recordings land in the store through the analysis forwarder (loomify submit).
- Tasks belong to developers inside a recording's analysis; they are
  append-only and identified by position, so only the text and completed
  flag ever change (loomify task toggle / edit).
- Dashboards are derived on read: per-developer rollups, per-project
  groupings, and completion percentages (loomify devs / projects / videos).`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LOOMIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-url", "http://127.0.0.1:8080", "Loomify API base URL")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(videosCmd())
	rootCmd.AddCommand(devsCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(summariesCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			upstream := cfg.Analyzer.URL
			if override := viper.GetString("analyzer-url"); override != "" {
				upstream = override
			}
			a := analyzer.New(upstream)
			a.Timeout = time.Duration(cfg.Analyzer.TimeoutSeconds) * time.Second
			handler, err := server.New(server.Config{
				Repo:     repo.Repo{DB: conn},
				Analyzer: a,
				BasePath: basePath,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Store: %s\n", db.Path(workspace))
			fmt.Printf("Serving Loomify API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

func videosCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "videos", Short: "Browse analyzed recordings"}
	cmd.AddCommand(videosListCmd())
	cmd.AddCommand(videosShowCmd())
	return cmd
}

func videosListCmd() *cobra.Command {
	var groupBy, search, status, bucket string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := newStore()
			if refresh {
				if err := store.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			recs, err := store.Recordings(cmd.Context())
			if err != nil {
				return err
			}
			if search != "" || status != "" || bucket != "" {
				refs := views.FilterTasks(recs, views.Filter{
					Status: statusOrAll(status),
					Search: search,
					Mode:   groupBy,
					Bucket: bucket,
				})
				if viper.GetBool("json") {
					return printJSON(refs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Recording", "Dev", "#", "Task", "Done"})
				for _, ref := range refs {
					tw.AppendRow(table.Row{ref.RecordingTitle, ref.Dev, ref.TaskIndex, ref.Task.Text, ref.Task.Completed})
				}
				tw.Render()
				return nil
			}
			if groupBy != "" {
				groups := views.GroupRecordings(recs, groupBy)
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				for _, g := range groups {
					fmt.Printf("%s (%d)\n", g.Key, len(g.Recordings))
					for _, rec := range g.Recordings {
						fmt.Printf("  %s  %s  %d%%\n", rec.ID, rec.Title, views.CompletionPercentage(rec))
					}
				}
				return nil
			}
			if viper.GetBool("json") {
				return printJSON(recs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Title", "Project", "Type", "Duration", "Done"})
			for _, rec := range recs {
				tw.AppendRow(table.Row{
					rec.ID, rec.Title, views.EffectiveProject(rec), rec.RecordingType,
					views.FormatDuration(rec.DurationSeconds),
					fmt.Sprintf("%d%%", views.CompletionPercentage(rec)),
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&groupBy, "group", "", "group by date, project, or type")
	cmd.Flags().StringVar(&search, "search", "", "search task text, titles, and dev names")
	cmd.Flags().StringVar(&status, "status", "", "task status filter: all, completed, pending")
	cmd.Flags().StringVar(&bucket, "bucket", "", "restrict to one group bucket (with --group)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refetch from the API instead of serving cached data")
	return cmd
}

func videosShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recording and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client := newStore()
			rec, err := client.FetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rec)
			}
			fmt.Printf("%s  (%s, %s, %d%% complete)\n", rec.Title, views.EffectiveProject(rec),
				views.FormatDuration(rec.DurationSeconds), views.CompletionPercentage(rec))
			for _, dev := range rec.Analysis.Developers {
				fmt.Printf("  %s\n", dev.Name)
				for i, t := range dev.Tasks {
					mark := " "
					if t.Completed {
						mark = "x"
					}
					fmt.Printf("    [%s] %d. %s\n", mark, i, t.Text)
				}
			}
			return nil
		},
	}
	return cmd
}

func devsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devs [name]",
		Short: "Per-developer task rollups across all recordings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := newStore()
			recs, err := store.Recordings(cmd.Context())
			if err != nil {
				return err
			}
			rollups := views.DeveloperRollups(recs)
			if len(args) == 1 {
				for _, r := range rollups {
					if r.Name != args[0] {
						continue
					}
					if viper.GetBool("json") {
						return printJSON(r)
					}
					fmt.Printf("%s: %d/%d tasks done (%d%%)\n", r.Name, r.CompletedTasks, r.TotalTasks, r.CompletionRate)
					for _, ref := range r.Tasks {
						mark := " "
						if ref.Task.Completed {
							mark = "x"
						}
						fmt.Printf("  [%s] %s #%d: %s\n", mark, ref.RecordingTitle, ref.TaskIndex, ref.Task.Text)
					}
					return nil
				}
				return fmt.Errorf("developer %q not found", args[0])
			}
			if viper.GetBool("json") {
				return printJSON(rollups)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Developer", "Tasks", "Completed", "Rate"})
			for _, r := range rollups {
				tw.AppendRow(table.Row{r.Name, r.TotalTasks, r.CompletedTasks, fmt.Sprintf("%d%%", r.CompletionRate)})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Recordings grouped by project",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := newStore()
			recs, err := store.Recordings(cmd.Context())
			if err != nil {
				return err
			}
			groups := views.GroupRecordings(recs, views.GroupByProject)
			if viper.GetBool("json") {
				return printJSON(groups)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Project", "Recordings", "Tasks Done"})
			for _, g := range groups {
				total, done := 0, 0
				for _, rec := range g.Recordings {
					for _, dev := range rec.Analysis.Developers {
						for _, t := range dev.Tasks {
							total++
							if t.Completed {
								done++
							}
						}
					}
				}
				tw.AppendRow(table.Row{g.Key, len(g.Recordings), fmt.Sprintf("%d/%d", done, total)})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Toggle or edit extracted tasks"}
	cmd.AddCommand(taskToggleCmd())
	cmd.AddCommand(taskEditCmd())
	return cmd
}

func taskToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <video-id> <dev> <index>",
		Short: "Flip a task's completed flag and save",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid task index %q", args[2])
			}
			return withSession(cmd.Context(), args[0], func(s *session.Session) {
				s.Toggle(args[1], index)
			})
		},
	}
	return cmd
}

func taskEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <video-id> <dev> <index> <text>",
		Short: "Rewrite a task's text and save",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid task index %q", args[2])
			}
			return withSession(cmd.Context(), args[0], func(s *session.Session) {
				s.SetText(args[1], index, args[3])
			})
		},
	}
	return cmd
}

func submitCmd() *cobra.Command {
	var recordingType string
	cmd := &cobra.Command{
		Use:   "submit <loom-url>",
		Short: "Submit a recording URL for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loomURL := strings.TrimSpace(args[0])
			if loomURL == "" {
				return fmt.Errorf("loom url is required")
			}
			_, client := newStore()
			sub, err := client.Submit(cmd.Context(), loomURL, recordingType)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(sub)
			}
			switch sub.Status {
			case "processing":
				fmt.Println("Queued for background processing:", sub.Message)
			case "success":
				fmt.Println("Submitted:", sub.Message)
			default:
				fmt.Println("Analysis completed and stored.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordingType, "type", "", "recording type hint (e.g. meeting, Q&A)")
	return cmd
}

func summariesCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List meeting summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client := newStore()
			items, err := client.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			for _, s := range items {
				fmt.Printf("%s  %s  (%s)\n", s.ID, s.Title, s.CreatedAt)
				if full {
					fmt.Println(strings.TrimSpace(html2text.HTML2Text(s.Content)))
					fmt.Println()
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "render summary content as text")
	cmd.AddCommand(summariesImportCmd())
	return cmd
}

func summariesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import meeting summaries from a JSON export into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var items []domain.Summary
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("invalid export file: %w", err)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				for i := range items {
					if items[i].ID == "" {
						items[i].ID = uuid.NewString()
					}
					if err := r.InsertSummary(ctx, items[i]); err != nil {
						return fmt.Errorf("import %s: %w", items[i].ID, err)
					}
				}
				fmt.Printf("Imported %d summaries\n", len(items))
				return nil
			})
		},
	}
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import recordings from a JSON export into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var recs []domain.Recording
			if err := json.Unmarshal(data, &recs); err != nil {
				return fmt.Errorf("invalid export file: %w", err)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				for i := range recs {
					if recs[i].ID == "" {
						recs[i].ID = uuid.NewString()
					}
					if _, err := r.InsertRecording(ctx, recs[i]); err != nil {
						return fmt.Errorf("import %s: %w", recs[i].ID, err)
					}
				}
				fmt.Printf("Imported %d recordings\n", len(recs))
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	var n int
	var evtType, recordingID string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Tail the store mutation audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, repo.EventFilters{Type: evtType, RecordingID: recordingID, Limit: n})
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&recordingID, "recording-id", "", "recording filter")
	return cmd
}

// --- helpers ---

func newStore() (*cache.Store, *loomifysdk.Client) {
	client := loomifysdk.New(viper.GetString("api-url"))
	return cache.New(client), client
}

func withSession(ctx context.Context, videoID string, edit func(*session.Session)) error {
	store, client := newStore()
	rec, err := client.FetchOne(ctx, videoID)
	if err != nil {
		return err
	}
	s := session.New(rec)
	edit(s)
	updated, saved, err := s.Save(ctx, store)
	if err != nil {
		return err
	}
	if !saved {
		fmt.Println("No changes to save.")
		return nil
	}
	if viper.GetBool("json") {
		return printJSON(updated)
	}
	fmt.Printf("Saved. %s is now %d%% complete.\n", updated.Title, views.CompletionPercentage(updated))
	return nil
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusOrAll(status string) string {
	if status == "" {
		return views.StatusAll
	}
	return status
}
