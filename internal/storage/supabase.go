package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// SupabaseStore 基于 Supabase (PostgREST) 的通话记录存储
// SupabaseStore keeps call records in a Supabase table through PostgREST
type SupabaseStore struct {
	client *supa.Client
	table  string
}

// NewSupabaseClient 创建共享的 Supabase 客户端 / Creates a shared Supabase client
func NewSupabaseClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(strings.TrimRight(strings.TrimSpace(url), "/"), strings.TrimSpace(key), nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// NewSupabaseStore wraps client; table defaults to "calls".
func NewSupabaseStore(client *supa.Client, table string) *SupabaseStore {
	if strings.TrimSpace(table) == "" {
		table = "calls"
	}
	return &SupabaseStore{client: client, table: table}
}

func (s *SupabaseStore) CreateCall(ctx context.Context, rec CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("call id is empty")
	}
	now := nowUTC()
	if rec.CreatedAt == "" {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt == "" {
		rec.UpdatedAt = now
	}
	if rec.Status == "" {
		rec.Status = StatusProcessing
	}
	if rec.Checklist == nil {
		rec.Checklist = []string{}
	}
	if _, _, err := s.client.From(s.table).Insert(rec, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (s *SupabaseStore) LoadCall(ctx context.Context, id string) (CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return CallRecord{}, err
	}
	body, _, err := s.client.From(s.table).Select("*", "", false).Eq("id", id).Limit(1, "").Execute()
	if err != nil {
		return CallRecord{}, fmt.Errorf("load call: %w", err)
	}
	recs, err := decodeCalls(body)
	if err != nil {
		return CallRecord{}, err
	}
	if len(recs) == 0 {
		return CallRecord{}, fmt.Errorf("load call %s: %w", id, ErrNotFound)
	}
	return recs[0], nil
}

func (s *SupabaseStore) ListCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From(s.table).Select("*", "", false).Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	body, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return decodeCalls(body)
}

// UpdateCall 只发送补丁设置的列，不同字段组的并发更新互不覆盖
// UpdateCall sends only the columns the patch sets, so concurrent patches to
// disjoint field groups both survive. The updated row comes back in the response.
func (s *SupabaseStore) UpdateCall(ctx context.Context, id string, patch CallPatch) (CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return CallRecord{}, err
	}
	body, _, err := s.client.From(s.table).Update(patch.Columns(), "representation", "").Eq("id", id).Execute()
	if err != nil {
		return CallRecord{}, fmt.Errorf("update call: %w", err)
	}
	recs, err := decodeCalls(body)
	if err != nil {
		return CallRecord{}, fmt.Errorf("update call: %w", err)
	}
	if len(recs) == 0 {
		return CallRecord{}, fmt.Errorf("update call %s: %w", id, ErrNotFound)
	}
	return recs[0], nil
}

func (s *SupabaseStore) DeleteCall(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, _, err := s.client.From(s.table).Delete("representation", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("delete call: %w", err)
	}
	recs, err := decodeCalls(body)
	if err == nil && len(recs) == 0 {
		return fmt.Errorf("delete call %s: %w", id, ErrNotFound)
	}
	return nil
}

// Close is a no-op; the HTTP client has nothing to release.
func (s *SupabaseStore) Close() error { return nil }

func decodeCalls(body []byte) ([]CallRecord, error) {
	var recs []CallRecord
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("decode calls: %w", err)
	}
	return recs, nil
}
