package checklist

import (
	"fmt"
	"sync"
)

// Item 清单条目及其状态；ManuallySet 为 true 后自动分析不再改变 Checked
// Item is a topic with its state; once ManuallySet, analysis can no longer change Checked
type Item struct {
	Definition
	Checked     bool
	ManuallySet bool
}

// Model 会话内的清单状态，可被分析协程与用户并发修改
// Model holds the per-session checklist; safe for concurrent use by the analyzer and the user
type Model struct {
	mu    sync.Mutex
	items []Item
}

func NewModel() *Model {
	m := &Model{}
	m.Reset()
	return m
}

// Reset 所有条目恢复为未勾选、非手动
// Reset clears every item to unchecked and not manually set
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]Item, len(definitions))
	for i, d := range definitions {
		m.items[i] = Item{Definition: d}
	}
}

// Items returns a snapshot of the items in definition order.
func (m *Model) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Toggle flips an item and marks it manual. Manual state is authoritative for the rest of the session.
func (m *Model) Toggle(id string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Checked = !m.items[i].Checked
			m.items[i].ManuallySet = true
			return m.items[i], nil
		}
	}
	return Item{}, fmt.Errorf("unknown checklist item %q", id)
}

// Merge 合并一次分析结果：只勾选非手动条目，从不取消勾选；未出现的条目保持不变
// Merge applies detected ids. Only non-manual items are checked, nothing is ever
// unchecked, and items absent from ids are left alone. It returns the ids that changed.
func (m *Model) Merge(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	detected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		detected[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []string
	for i := range m.items {
		it := &m.items[i]
		if _, ok := detected[it.ID]; !ok || it.ManuallySet || it.Checked {
			continue
		}
		it.Checked = true
		changed = append(changed, it.ID)
	}
	return changed
}

// Completed returns how many items are checked.
func (m *Model) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.Checked {
			n++
		}
	}
	return n
}
