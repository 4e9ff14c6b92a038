package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"wishdoc/internal/perrors"
)

// Memory is an in-process Store with the same revision semantics as the
// Postgres adapter. It backs tests and runs the server without a
// database configured.
type Memory struct {
	mu          sync.RWMutex
	records     map[string]Record
	attachments map[string]map[string]Attachment
	order       []string
}

func NewMemory() *Memory {
	return &Memory{
		records:     map[string]Record{},
		attachments: map[string]map[string]Attachment{},
	}
}

func (m *Memory) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, perrors.NewErrNotFound("record not found", nil, map[string]interface{}{"id": id})
	}

	cp := rec
	cp.Doc = append([]byte(nil), rec.Doc...)
	return &cp, nil
}

func (m *Memory) Insert(ctx context.Context, rec *Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[rec.ID]
	if rec.Rev == 0 {
		if ok {
			return 0, perrors.NewErrConflict("record already exists", nil, map[string]interface{}{"id": rec.ID})
		}
		stored := *rec
		stored.Rev = 1
		stored.Doc = append([]byte(nil), rec.Doc...)
		m.records[rec.ID] = stored
		m.order = append(m.order, rec.ID)
		return 1, nil
	}

	if !ok || existing.Rev != rec.Rev {
		return 0, perrors.NewErrConflict("stale revision", nil, map[string]interface{}{"id": rec.ID, "rev": rec.Rev})
	}

	stored := *rec
	stored.Rev = existing.Rev + 1
	stored.Doc = append([]byte(nil), rec.Doc...)
	m.records[rec.ID] = stored
	return stored.Rev, nil
}

func (m *Memory) Destroy(ctx context.Context, id string, rev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[id]
	if !ok || existing.Rev != rev {
		return perrors.NewErrConflict("stale revision", nil, map[string]interface{}{"id": id, "rev": rev})
	}
	delete(m.records, id)
	delete(m.attachments, id)
	m.dropOrder(id)
	return nil
}

// dropOrder removes id from the insertion order so a later re-insert
// of the same id does not surface twice in ListAll. Callers hold mu.
func (m *Memory) dropOrder(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) ListAll(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]Record, 0, len(m.records))
	for _, id := range m.order {
		if rec, ok := m.records[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *Memory) BulkDelete(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if existing, ok := m.records[e.ID]; ok && existing.Rev == e.Rev {
			delete(m.records, e.ID)
			delete(m.attachments, e.ID)
			m.dropOrder(e.ID)
		}
	}
	return nil
}

func (m *Memory) PutAttachment(ctx context.Context, id, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attachments[id] == nil {
		m.attachments[id] = map[string]Attachment{}
	}
	m.attachments[id][key] = Attachment{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (m *Memory) GetAttachment(ctx context.Context, id, key string) (*Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	att, ok := m.attachments[id][key]
	if !ok {
		return nil, perrors.NewErrNotFound("attachment not found", nil, map[string]interface{}{"id": id, "key": key})
	}
	cp := att
	cp.Data = append([]byte(nil), att.Data...)
	return &cp, nil
}

// Search does a naive substring match over the JSON body; close enough
// to the real index for tests and local runs.
func (m *Memory) Search(ctx context.Context, index, query string) ([]Record, error) {
	var recType string
	switch index {
	case IndexDocuments:
		recType = TypeDocument
	case IndexUsers:
		recType = TypeUser
	default:
		return nil, perrors.NewErrInvalidRequest("unknown search index", nil, map[string]interface{}{"index": index})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Record
	needle := strings.ToLower(strings.TrimSpace(query))
	for _, rec := range m.records {
		if rec.Type != recType || IsInternal(rec.ID) {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(string(rec.Doc)), needle) {
			matches = append(matches, rec)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].TS > matches[j].TS })
	return matches, nil
}
