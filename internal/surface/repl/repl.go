package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"callsync/internal/crm"
	"callsync/internal/i18n"
	"callsync/internal/session"
	"callsync/internal/surface"
)

var commandNames = []string{
	"help", "status", "start", "pause", "resume", "stop", "reset", "process", "upload",
	"search", "pick", "link", "check", "summary", "quit",
}

// REPL 基于行的宿主界面，所有命令以 / 开头
// REPL is the line-oriented surface; every command starts with a slash
type REPL struct {
	dispatch *surface.Dispatcher
	in       LineInput
	loc      *i18n.I18n
	width    int

	mu        sync.Mutex
	out       io.Writer
	lastDeals []crm.Deal
	banner    []string
}

// New 创建 REPL；out 为 nil 时使用 readline 的输出或 stdout
// New builds a REPL; a nil out uses the readline writer when available, else stdout
func New(d *surface.Dispatcher, in LineInput, out io.Writer, loc *i18n.I18n) *REPL {
	if out == nil {
		if w, ok := in.(interface{ Stdout() io.Writer }); ok {
			out = w.Stdout()
		} else {
			out = os.Stdout
		}
	}
	if loc == nil {
		loc = i18n.Global()
	}
	return &REPL{dispatch: d, in: in, out: out, loc: loc, width: 80}
}

// SetBanner sets lines printed once after the welcome message.
func (r *REPL) SetBanner(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banner = append([]string(nil), lines...)
}

func (r *REPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Run 读取并执行命令，直到 EOF、/quit 或 ctx 结束
// Run reads and executes commands until EOF, /quit or ctx ends
func (r *REPL) Run(ctx context.Context) error {
	unsub := r.dispatch.Ctrl.Subscribe(r.onEvent)
	defer unsub()

	r.printf("%s\n", r.loc.T("repl.welcome"))
	r.mu.Lock()
	for _, line := range r.banner {
		fmt.Fprintf(r.out, "! %s\n", line)
	}
	r.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := r.in.ReadLine(r.prompt())
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				continue
			case errors.Is(err, io.EOF):
				r.printf("%s\n", r.loc.T("repl.bye"))
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		if quit := r.Handle(ctx, line); quit {
			r.printf("%s\n", r.loc.T("repl.bye"))
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	v := r.dispatch.Ctrl.View()
	return fmt.Sprintf("[%s %s] > ", surface.StateLabel(r.loc, v.State.String()), surface.FormatElapsed(v.ElapsedSeconds))
}

func (r *REPL) onEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventState:
		r.printf("-> %s\n", surface.StateLabel(r.loc, ev.State.String()))
	case session.EventChecklist:
		if len(ev.Changed) > 0 {
			r.printf("+ %s\n", strings.Join(ev.Changed, ", "))
		}
	case session.EventError:
		if ev.Err != nil {
			r.printf("%s\n", r.loc.T("error.prefix", ev.Err.Error()))
		}
	}
}

// Handle 执行一行输入，返回是否退出
// Handle executes one input line and reports whether the user asked to quit
func (r *REPL) Handle(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]
	if !strings.HasPrefix(parts[0], "/") {
		r.printf("%s\n", r.loc.T("repl.unknown", parts[0]))
		return false
	}

	switch name {
	case "quit", "exit":
		return true
	case "help":
		r.printHelp()
	case "status":
		r.printStatus(r.run(ctx, surface.Command{Op: surface.OpStatus}))
	case "start", "pause", "resume", "stop", "reset", "upload":
		resp := r.run(ctx, surface.Command{Op: surface.Op(name)})
		if resp.OK && name == "upload" {
			r.printf("%s\n", r.loc.T("status.uploaded", resp.View.DealName))
		}
	case "process":
		r.printf("%s\n", r.loc.T("status.processing"))
		resp := r.run(ctx, surface.Command{Op: surface.OpProcess})
		switch {
		case resp.OK:
			r.printSummary(resp.View)
		case resp.View != nil && resp.View.AudioBytes > 0:
			r.printf("%s\n", r.loc.T("status.audio_saved", resp.View.AudioBytes))
		}
	case "search":
		if len(args) == 0 {
			r.printf("%s\n", r.loc.T("repl.usage_search"))
			return false
		}
		r.search(ctx, strings.Join(args, " "))
	case "pick":
		r.pick(ctx, args)
	case "link":
		if len(args) == 0 {
			r.printf("%s\n", r.loc.T("repl.usage_link"))
			return false
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			r.printf("%s\n", r.loc.T("repl.usage_link"))
			return false
		}
		name := strings.Join(args[1:], " ")
		if resp := r.run(ctx, surface.Command{Op: surface.OpLink, DealID: id, DealName: name}); resp.OK {
			r.printf("%s\n", r.loc.T("search.linked", linkLabel(id, name)))
		}
	case "check":
		if len(args) != 1 {
			r.printf("%s\n", r.loc.T("repl.usage_check"))
			return false
		}
		if resp := r.run(ctx, surface.Command{Op: surface.OpCheck, Item: args[0]}); resp.OK {
			r.printf("%s\n", surface.RenderChecklist(r.loc, resp.View.Checklist))
		}
	case "summary":
		if len(args) == 0 {
			r.printSummary(surface.NewSnapshot(r.dispatch.Ctrl.View()))
			return false
		}
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0]))
		if resp := r.run(ctx, surface.Command{Op: surface.OpSummary, Text: text}); resp.OK {
			r.printf("%s\n", r.loc.T("summary.saved"))
		}
	default:
		r.printf("%s\n", r.loc.T("repl.unknown", parts[0]))
	}
	return false
}

// run dispatches cmd and prints its error, if any.
func (r *REPL) run(ctx context.Context, cmd surface.Command) surface.Response {
	resp := r.dispatch.Dispatch(ctx, cmd)
	if !resp.OK {
		r.printf("%s\n", r.loc.T("error.prefix", resp.Error))
	}
	return resp
}

func (r *REPL) search(ctx context.Context, query string) {
	resp := r.dispatch.Dispatch(ctx, surface.Command{Op: surface.OpSearch, Text: query})
	if !resp.OK {
		r.printf("%s\n", r.loc.T("search.failed", resp.Error))
		return
	}
	r.mu.Lock()
	r.lastDeals = resp.Deals
	r.mu.Unlock()
	if len(resp.Deals) == 0 {
		r.printf("%s\n", r.loc.T("search.empty"))
		return
	}
	for i, d := range resp.Deals {
		r.printf("  %d. %s  #%d\n", i+1, d.Label(), d.ID)
	}
}

func (r *REPL) pick(ctx context.Context, args []string) {
	r.mu.Lock()
	deals := r.lastDeals
	r.mu.Unlock()
	if len(args) != 1 {
		r.printf("%s\n", r.loc.T("repl.usage_pick"))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(deals) {
		r.printf("%s\n", r.loc.T("repl.usage_pick"))
		return
	}
	d := deals[n-1]
	if resp := r.run(ctx, surface.Command{Op: surface.OpLink, DealID: d.ID, DealName: d.Label()}); resp.OK {
		r.printf("%s\n", r.loc.T("search.linked", d.Label()))
	}
}

func (r *REPL) printHelp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "commands:")
	for _, name := range commandNames {
		fmt.Fprintf(r.out, "  /%s\n", name)
	}
}

func (r *REPL) printStatus(resp surface.Response) {
	v := resp.View
	if v == nil {
		return
	}
	deal := r.loc.T("deal.none")
	if v.DealID != 0 {
		deal = r.loc.T("deal.linked", linkLabel(v.DealID, v.DealName))
	}
	r.printf("%s  %s  %s\n%s\n", surface.StateLabel(r.loc, v.State), surface.FormatElapsed(v.ElapsedSeconds), deal,
		surface.RenderChecklist(r.loc, v.Checklist))
	if v.LastError != "" {
		r.printf("%s\n", r.loc.T("error.prefix", v.LastError))
	}
}

func (r *REPL) printSummary(v *surface.Snapshot) {
	if v == nil || strings.TrimSpace(v.Summary) == "" {
		r.printf("%s\n", r.loc.T("summary.empty"))
		return
	}
	r.printf("%s\n", surface.RenderMarkdown(v.Summary, r.width))
}

func linkLabel(id int64, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}
