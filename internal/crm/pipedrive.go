package crm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"callsync/internal/config"
	"callsync/internal/errs"
	"callsync/internal/provider"
)

// Deal 搜索返回的候选交易 / Deal is one candidate record returned by search
type Deal struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Organization string  `json:"organization,omitempty"`
	Person       string  `json:"person,omitempty"`
	Value        float64 `json:"value,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Status       string  `json:"status,omitempty"`
}

// Label renders "Title (Organization)" for pickers.
func (d Deal) Label() string {
	if d.Organization == "" {
		return d.Title
	}
	return d.Title + " (" + d.Organization + ")"
}

// Searcher 按关键字检索交易 / Searcher finds deals by free-text query
type Searcher interface {
	Search(ctx context.Context, query string) ([]Deal, error)
}

// NoteAttacher 把笔记挂到交易上并返回笔记 ID
// NoteAttacher pins a note to a deal and returns the note id
type NoteAttacher interface {
	AddNote(ctx context.Context, dealID int64, content string) (int64, error)
}

// Pipedrive 是 Searcher 与 NoteAttacher 的 Pipedrive v1 实现
// Pipedrive implements Searcher and NoteAttacher over the Pipedrive v1 REST API
type Pipedrive struct {
	http           *resty.Client
	token          string
	limit          int
	minQueryLength int
	logger         *zap.Logger
}

// NewPipedrive builds a client from cfg; http may be nil.
func NewPipedrive(cfg config.CRMConfig, http *resty.Client, logger *zap.Logger) *Pipedrive {
	if http == nil {
		http = resty.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	http.SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 10
	}
	minLen := cfg.MinQueryLength
	if minLen <= 0 {
		minLen = config.DefaultSearchMinQueryLength
	}
	return &Pipedrive{http: http, token: strings.TrimSpace(cfg.APIToken), limit: limit, minQueryLength: minLen, logger: logger}
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Item struct {
				ID           int64   `json:"id"`
				Title        string  `json:"title"`
				Value        float64 `json:"value"`
				Currency     string  `json:"currency"`
				Status       string  `json:"status"`
				Organization *struct {
					Name string `json:"name"`
				} `json:"organization"`
				Person *struct {
					Name string `json:"name"`
				} `json:"person"`
			} `json:"item"`
		} `json:"items"`
	} `json:"data"`
}

// Search 查询少于最小长度时直接返回空结果，不发请求
// Search returns an empty result without a request when the query is too short
func (p *Pipedrive) Search(ctx context.Context, query string) ([]Deal, error) {
	const op = "pipedrive search"
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < p.minQueryLength {
		return nil, nil
	}
	if p.token == "" {
		return nil, errs.New(errs.KindPreconditionFailed, op, "pipedrive api token is not configured")
	}

	var body searchResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("term", query).
		SetQueryParam("api_token", p.token).
		SetQueryParam("limit", strconv.Itoa(p.limit)).
		SetResult(&body).
		Get("/deals/search")
	if err != nil {
		return nil, provider.Classify(op, err)
	}
	if resp.IsError() {
		return nil, provider.ClassifyStatus(op, resp.StatusCode(), resp.String())
	}

	deals := make([]Deal, 0, len(body.Data.Items))
	for _, it := range body.Data.Items {
		d := Deal{
			ID:       it.Item.ID,
			Title:    it.Item.Title,
			Value:    it.Item.Value,
			Currency: it.Item.Currency,
			Status:   it.Item.Status,
		}
		if it.Item.Organization != nil {
			d.Organization = it.Item.Organization.Name
		}
		if it.Item.Person != nil {
			d.Person = it.Item.Person.Name
		}
		deals = append(deals, d)
	}
	p.logger.Debug("pipedrive search", zap.String("query", query), zap.Int("results", len(deals)))
	return deals, nil
}

type noteResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// AddNote 创建置顶笔记 / AddNote creates a note pinned to the deal
func (p *Pipedrive) AddNote(ctx context.Context, dealID int64, content string) (int64, error) {
	const op = "pipedrive add note"
	if dealID <= 0 || strings.TrimSpace(content) == "" {
		return 0, errs.New(errs.KindPreconditionFailed, op, "deal id and content are required")
	}
	if p.token == "" {
		return 0, errs.New(errs.KindPreconditionFailed, op, "pipedrive api token is not configured")
	}

	var body noteResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("api_token", p.token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"deal_id":             dealID,
			"content":             content,
			"pinned_to_deal_flag": true,
		}).
		SetResult(&body).
		Post("/notes")
	if err != nil {
		return 0, provider.Classify(op, err)
	}
	if resp.IsError() {
		return 0, provider.ClassifyStatus(op, resp.StatusCode(), resp.String())
	}
	if body.Data.ID == 0 {
		return 0, errs.New(errs.KindMalformedResponse, op, fmt.Sprintf("response carries no note id: %s", truncate(resp.String(), 200)))
	}
	p.logger.Info("note attached", zap.Int64("deal_id", dealID), zap.Int64("note_id", body.Data.ID))
	return body.Data.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
