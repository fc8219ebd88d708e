package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"callsync/internal/config"
	"callsync/internal/i18n"
	"callsync/internal/storage"
	"callsync/internal/surface"
	"callsync/internal/surface/daemon"
	"callsync/internal/surface/repl"
	"callsync/internal/surface/tui"
)

type rootOptions struct {
	configPath string
	lang       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "callsync",
		Short:         "Record calls, track the topic checklist and attach AI summaries to CRM deals",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config JSON/JSONC")
	root.PersistentFlags().StringVar(&opts.lang, "lang", "", "Interface language (en, fr)")

	record := newRecordCmd(opts)
	root.RunE = record.RunE
	root.Flags().AddFlagSet(record.Flags())

	root.AddCommand(
		record,
		newCtlCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newDeleteCmd(opts),
		newCleanupCmd(opts),
		newSearchCmd(opts),
		newConfigCmd(),
		newVersionCmd(opts),
	)
	return root
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var surfaceName string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Start an interactive recording session (tui, repl or daemon surface)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			requested := surfaceName
			if !cmd.Flags().Changed("surface") {
				requested = rt.cfg.UI.Surface
			}
			name := pickSurface(requested, term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())))
			rt.logger.Info("starting surface", zap.String("surface", name), zap.String("version", version))

			ctrl := newController(rt)
			defer ctrl.Close()
			loc := i18n.Global()
			banner := bannerLines(rt.cfg, loc)

			var s surface.Surface
			switch name {
			case surfaceTUI:
				app := tui.NewApp(ctx, ctrl, newDebouncer(rt), loc)
				app.SetBanner(banner...)
				s = app
			case surfaceDaemon:
				for _, line := range banner {
					rt.logger.Info("notice", zap.String("message", line))
				}
				s = &daemon.Server{
					Socket:   daemon.SocketPath(rt.cfg.UI.Socket, rt.cfg.DataDir()),
					Dispatch: &surface.Dispatcher{Ctrl: ctrl, Search: rt.crm, Logger: rt.logger},
					Logger:   rt.logger,
				}
			default:
				in, inputErr := repl.NewLineInput(rt.cfg.DataDir(historyFile))
				if inputErr != nil {
					fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", inputErr)
				}
				defer in.Close()
				r := repl.New(&surface.Dispatcher{Ctrl: ctrl, Search: rt.crm, Logger: rt.logger}, in, nil, loc)
				r.SetBanner(banner...)
				s = r
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&surfaceName, "surface", surfaceAuto, "Host surface: auto, tui, repl or daemon")
	return cmd
}

func newCtlCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ctl <op> [args...]",
		Short: "Send one command to a running daemon and print the JSON reply",
		Long: "Ops: " + joinOps() + ".\n" +
			"link takes <deal_id> [name], check takes <item_id>, summary and search take free text.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c, err := parseCommand(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = time.Duration(cfg.UI.RequestMS) * time.Millisecond
				if c.Op == surface.OpProcess || c.Op == surface.OpUpload {
					timeout = time.Duration(cfg.Provider.TimeoutMS*max(cfg.Provider.Attempts, 1))*time.Millisecond + timeout
				}
			}
			client := &daemon.Client{Socket: daemon.SocketPath(cfg.UI.Socket, cfg.DataDir()), Timeout: timeout}
			resp, err := client.Do(cmd.Context(), c)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			return resp.Err()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", daemon.DefaultTimeout, "How long to wait for the daemon reply")
	return cmd
}

func joinOps() string {
	names := make([]string, 0, len(surface.Ops))
	for _, op := range surface.Ops {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}

// parseCommand 把命令行参数转换为类型化 Command
// parseCommand turns ctl arguments into a typed Command
func parseCommand(args []string) (surface.Command, error) {
	op := surface.Op(strings.ToLower(args[0]))
	rest := args[1:]
	c := surface.Command{Op: op}
	switch op {
	case surface.OpLink:
		if len(rest) == 0 {
			return c, fmt.Errorf("link needs a deal id")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || id <= 0 {
			return c, fmt.Errorf("invalid deal id %q", rest[0])
		}
		c.DealID = id
		c.DealName = strings.Join(rest[1:], " ")
	case surface.OpCheck:
		if len(rest) != 1 {
			return c, fmt.Errorf("check needs exactly one item id")
		}
		c.Item = rest[0]
	case surface.OpSummary, surface.OpSearch:
		if len(rest) == 0 {
			return c, fmt.Errorf("%s needs text", op)
		}
		c.Text = strings.Join(rest, " ")
	default:
		known := false
		for _, o := range surface.Ops {
			if o == op {
				known = true
			}
		}
		if !known {
			return c, fmt.Errorf("unknown op %q (want one of %s)", op, joinOps())
		}
	}
	return c, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded calls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			recs, err := rt.store.ListCalls(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printCalls(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultListSize, "Maximum number of calls (0 for all)")
	return cmd
}

func printCalls(w io.Writer, recs []storage.CallRecord) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no calls")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tDURATION\tDEAL")
	for _, r := range recs {
		deal := "-"
		if r.Linked() {
			deal = r.DealName
			if deal == "" {
				deal = "#" + strconv.FormatInt(r.DealID, 10)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt, r.Status, surface.FormatElapsed(r.DurationSeconds), deal)
	}
	return tw.Flush()
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <call_id>",
		Short: "Show one call with its rendered summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := rt.store.LoadCall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCall(cmd.OutOrStdout(), rec, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the summary markdown without rendering")
	return cmd
}

func printCall(w io.Writer, rec storage.CallRecord, raw bool) error {
	fmt.Fprintf(w, "%s  %s  %s\n", rec.ID, rec.Status, surface.FormatElapsed(rec.DurationSeconds))
	if rec.Linked() {
		fmt.Fprintf(w, "deal: %s (#%d)", rec.DealName, rec.DealID)
		if rec.NoteID > 0 {
			fmt.Fprintf(w, "  note #%d", rec.NoteID)
		}
		fmt.Fprintln(w)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "error: %s\n", rec.Error)
	}
	if len(rec.Checklist) > 0 {
		fmt.Fprintf(w, "checklist: %s\n", strings.Join(rec.Checklist, ", "))
	}
	if strings.TrimSpace(rec.Summary) == "" {
		return nil
	}
	fmt.Fprintln(w)
	if raw {
		_, err := fmt.Fprintln(w, rec.Summary)
		return err
	}
	_, err := fmt.Fprintln(w, surface.RenderMarkdown(rec.Summary, 100))
	return err
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <call_id>",
		Short: "Delete a call record and its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := storage.RemoveCall(cmd.Context(), rt.store, rt.blobs, args[0], rt.logger); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("call %s not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored audio older than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if !cmd.Flags().Changed("max-age") {
				maxAge = time.Duration(rt.cfg.Storage.CleanupMaxAgeHours) * time.Hour
			}
			res, err := storage.CleanupBlobs(cmd.Context(), rt.blobs, maxAge, time.Now())
			if err != nil {
				return err
			}
			for _, p := range res.Deleted {
				rt.logger.Info("blob deleted", zap.String("path", p))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d file(s), %d failed\n", len(res.Deleted), res.Failed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Delete audio older than this")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search CRM deals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			deals, err := rt.crm.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(deals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("search.empty"))
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDEAL\tSTATUS")
			for _, d := range deals {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.Label(), d.Status)
			}
			return tw.Flush()
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [dir]",
		Short: "Write a project config scaffold to <dir>/.callsync/config.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := config.InitProjectConfigScaffold(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and check for updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd.Context(), *opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "callsync %s\n", version)
			for _, line := range bannerLines(rt.cfg, i18n.Global()) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
