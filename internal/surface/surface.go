package surface

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"callsync/internal/checklist"
	"callsync/internal/crm"
	"callsync/internal/errs"
	"callsync/internal/session"
)

// Surface 宿主界面（TUI / REPL / 本地守护进程）
// Surface is a host front end that drives one controller until ctx ends or the user quits
type Surface interface {
	Run(ctx context.Context) error
}

// Controller 界面可调用的会话操作，*session.Controller 实现该接口
// Controller is the session API a surface may call; *session.Controller implements it
type Controller interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	Reset()
	Process(ctx context.Context) error
	Upload(ctx context.Context) error
	LinkRecord(ctx context.Context, dealID int64, dealName string) error
	ToggleChecklist(ctx context.Context, itemID string) (checklist.Item, error)
	EditSummary(ctx context.Context, text string) error
	View() session.View
	Subscribe(fn func(session.Event)) func()
}

// Op 命令名 / Op names a command
type Op string

const (
	OpStatus  Op = "status"
	OpStart   Op = "start"
	OpPause   Op = "pause"
	OpResume  Op = "resume"
	OpStop    Op = "stop"
	OpReset   Op = "reset"
	OpProcess Op = "process"
	OpUpload  Op = "upload"
	OpLink    Op = "link"
	OpCheck   Op = "check"
	OpSummary Op = "summary"
	OpSearch  Op = "search"
)

// Ops lists every command in help order.
var Ops = []Op{OpStatus, OpStart, OpPause, OpResume, OpStop, OpReset, OpProcess, OpUpload, OpLink, OpCheck, OpSummary, OpSearch}

// Command 一条类型化请求 / Command is one typed request
type Command struct {
	ID       string `json:"id,omitempty"`
	Op       Op     `json:"op"`
	Item     string `json:"item,omitempty"`
	DealID   int64  `json:"deal_id,omitempty"`
	DealName string `json:"deal_name,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Response 对应 Command 的应答；失败时 OK=false 且带错误分类
// Response answers a Command; on failure OK is false and Kind carries the error class
type Response struct {
	ID    string     `json:"id,omitempty"`
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Kind  string     `json:"kind,omitempty"`
	View  *Snapshot  `json:"view,omitempty"`
	Deals []crm.Deal `json:"deals,omitempty"`
}

// Err rebuilds a classified error from a failed response.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return &errs.Error{Kind: errs.ParseKind(r.Kind), Msg: r.Error}
}

// ChecklistEntry is the wire form of one checklist item.
type ChecklistEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
	Manual  bool   `json:"manual"`
}

// Snapshot 会话视图的序列化形式 / Snapshot is the serializable form of session.View
type Snapshot struct {
	ID             string           `json:"id,omitempty"`
	State          string           `json:"state"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	DealID         int64            `json:"deal_id,omitempty"`
	DealName       string           `json:"deal_name,omitempty"`
	Transcript     string           `json:"transcript,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Checklist      []ChecklistEntry `json:"checklist"`
	AudioBytes     int              `json:"audio_bytes,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
}

func NewSnapshot(v session.View) *Snapshot {
	s := &Snapshot{
		ID:             v.ID,
		State:          v.State.String(),
		ElapsedSeconds: v.ElapsedSeconds,
		DealID:         v.DealID,
		DealName:       v.DealName,
		Transcript:     v.Transcript,
		Summary:        v.Summary,
		AudioBytes:     v.AudioBytes,
		LastError:      v.LastError,
		Checklist:      make([]ChecklistEntry, 0, len(v.Checklist)),
	}
	for _, it := range v.Checklist {
		s.Checklist = append(s.Checklist, ChecklistEntry{ID: it.ID, Label: it.Label, Checked: it.Checked, Manual: it.ManuallySet})
	}
	return s
}

// Dispatcher 把 Command 路由到控制器与 CRM 搜索
// Dispatcher routes Commands to the controller and the CRM search
type Dispatcher struct {
	Ctrl   Controller
	Search crm.Searcher
	Logger *zap.Logger
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Dispatch 执行一条命令并返回应答；错误不会以 Go error 形式返回
// Dispatch runs one command; failures are reported inside the Response
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Response {
	resp := Response{ID: cmd.ID}
	var deals []crm.Deal
	var err error

	switch cmd.Op {
	case OpStatus:
	case OpStart:
		err = d.Ctrl.Start(ctx)
	case OpPause:
		err = d.Ctrl.Pause()
	case OpResume:
		err = d.Ctrl.Resume()
	case OpStop:
		err = d.Ctrl.Stop()
	case OpReset:
		d.Ctrl.Reset()
	case OpProcess:
		err = d.Ctrl.Process(ctx)
	case OpUpload:
		err = d.Ctrl.Upload(ctx)
	case OpLink:
		err = d.Ctrl.LinkRecord(ctx, cmd.DealID, strings.TrimSpace(cmd.DealName))
	case OpCheck:
		_, err = d.Ctrl.ToggleChecklist(ctx, strings.TrimSpace(cmd.Item))
	case OpSummary:
		err = d.Ctrl.EditSummary(ctx, cmd.Text)
	case OpSearch:
		if d.Search == nil {
			err = errs.New(errs.KindPreconditionFailed, "search", "CRM is not configured")
			break
		}
		deals, err = d.Search.Search(ctx, cmd.Text)
	default:
		err = errs.New(errs.KindPreconditionFailed, "dispatch", fmt.Sprintf("unknown command %q", cmd.Op))
	}

	if err != nil {
		d.logger().Debug("command failed", zap.String("op", string(cmd.Op)), zap.Error(err))
		resp.Error = err.Error()
		resp.Kind = errs.KindOf(err).String()
	} else {
		resp.OK = true
	}
	resp.Deals = deals
	resp.View = NewSnapshot(d.Ctrl.View())
	return resp
}

// FormatElapsed renders seconds as mm:ss, or h:mm:ss past one hour.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
