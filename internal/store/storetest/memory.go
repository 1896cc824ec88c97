// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// Memory is a map-backed store. Set Err to make every call fail.
type Memory struct {
	mu sync.Mutex

	Stages   map[string]*store.Stage
	Leads    map[uuid.UUID]*store.Lead
	Deals    map[uuid.UUID]*store.Deal
	Moves    []*store.StageMove
	Policies map[string]sla.Policy
	Rules    []transition.Rule
	Settings map[string]*store.Setting

	Err error
}

func New() *Memory {
	return &Memory{
		Stages:   make(map[string]*store.Stage),
		Leads:    make(map[uuid.UUID]*store.Lead),
		Deals:    make(map[uuid.UUID]*store.Deal),
		Policies: make(map[string]sla.Policy),
		Settings: make(map[string]*store.Setting),
	}
}

var _ store.Store = (*Memory)(nil)

func (m *Memory) ListStages(_ context.Context) ([]*store.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*store.Stage
	for _, s := range m.Stages {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpsertStage(_ context.Context, stage *store.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *stage
	m.Stages[stage.ID] = &cp
	return nil
}

func (m *Memory) CreateLead(_ context.Context, lead *store.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	lead.ID = uuid.New()
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt
	cp := *lead
	m.Leads[lead.ID] = &cp
	return nil
}

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (*store.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	l, ok := m.Leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *Memory) ListLeads(_ context.Context, filter store.LeadFilter) ([]*store.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*store.Lead
	for _, l := range m.Leads {
		if filter.Bucket != "" && l.PriorityBucket != filter.Bucket {
			continue
		}
		if filter.Owner != "" && l.Owner != filter.Owner {
			continue
		}
		if filter.ByID && bytes.Compare(l.ID[:], filter.AfterID[:]) <= 0 {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	if filter.ByID {
		sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
		return page(out, filter.Limit, 0), nil
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].PriorityScore, out[j].PriorityScore
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si > *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *Memory) UpdateLead(_ context.Context, lead *store.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.Leads[lead.ID]
	if !ok {
		return nil
	}
	existing.Name = lead.Name
	existing.Company = lead.Company
	existing.Owner = lead.Owner
	existing.LastActivityAt = lead.LastActivityAt
	existing.NextMeetingAt = lead.NextMeetingAt
	existing.UpdatedAt = time.Now()
	lead.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *Memory) UpdateLeadPriority(_ context.Context, id uuid.UUID, score float64, bucket scoring.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if l, ok := m.Leads[id]; ok {
		l.PriorityScore = &score
		l.PriorityBucket = string(bucket)
	}
	return nil
}

func (m *Memory) CreateDeal(_ context.Context, deal *store.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	deal.ID = uuid.New()
	deal.CreatedAt = time.Now()
	deal.UpdatedAt = deal.CreatedAt
	if deal.StageEnteredAt.IsZero() {
		deal.StageEnteredAt = deal.CreatedAt
	}
	if deal.SLAStatus == "" {
		deal.SLAStatus = sla.StatusOK
	}
	cp := *deal
	m.Deals[deal.ID] = &cp
	return nil
}

func (m *Memory) GetDeal(_ context.Context, id uuid.UUID) (*store.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	d, ok := m.Deals[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) ListDeals(_ context.Context, filter store.DealFilter) ([]*store.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.deals(func(d *store.Deal) bool {
		if d.Closed && !filter.IncludeClosed {
			return false
		}
		if filter.Stage != "" && d.CurrentStage != filter.Stage {
			return false
		}
		return filter.Owner == "" || d.Owner == filter.Owner
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *Memory) ListOpenDeals(_ context.Context) ([]*store.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.deals(func(d *store.Deal) bool { return !d.Closed }), nil
}

func (m *Memory) deals(keep func(*store.Deal) bool) []*store.Deal {
	var out []*store.Deal
	for _, d := range m.Deals {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageEnteredAt.Before(out[j].StageEnteredAt) })
	return out
}

func (m *Memory) SetDealClosed(_ context.Context, id uuid.UUID, closed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if d, ok := m.Deals[id]; ok {
		d.Closed = closed
	}
	return nil
}

func (m *Memory) UpdateDealSLAStatus(_ context.Context, id uuid.UUID, stageEnteredAt time.Time, status sla.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	d, ok := m.Deals[id]
	if !ok || d.Closed || !d.StageEnteredAt.Equal(stageEnteredAt) {
		return false, nil
	}
	d.SLAStatus = status
	return true, nil
}

func (m *Memory) MoveDeal(_ context.Context, id uuid.UUID, toStage, movedBy string, allow store.AllowFn) (*store.Deal, *store.StageMove, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, nil, m.Err
	}
	d, ok := m.Deals[id]
	if !ok {
		return nil, nil, nil
	}
	if d.Closed {
		cp := *d
		return &cp, nil, store.ErrDealClosed
	}
	from := d.CurrentStage
	if from == toStage {
		cp := *d
		return &cp, nil, nil
	}
	if allow != nil && !allow(from, toStage) {
		cp := *d
		return &cp, nil, store.ErrTransitionDenied
	}

	now := time.Now()
	d.CurrentStage = toStage
	d.StageEnteredAt = now
	d.SLAStatus = sla.StatusOK
	d.UpdatedAt = now

	move := &store.StageMove{ID: uuid.New(), DealID: id, FromStage: from, ToStage: toStage, MovedBy: movedBy, CreatedAt: now}
	m.Moves = append(m.Moves, move)

	cp := *d
	mv := *move
	return &cp, &mv, nil
}

func (m *Memory) GetDealHistory(_ context.Context, id uuid.UUID) ([]*store.StageMove, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*store.StageMove
	for _, mv := range m.Moves {
		if mv.DealID == id {
			cp := *mv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) ListSLAPolicies(_ context.Context) ([]sla.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []sla.Policy
	for _, p := range m.Policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageID < out[j].StageID })
	return out, nil
}

func (m *Memory) UpsertSLAPolicy(_ context.Context, p sla.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Policies[p.StageID] = p
	return nil
}

func (m *Memory) DeleteSLAPolicy(_ context.Context, stageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Policies, stageID)
	return nil
}

func (m *Memory) ListTransitionRules(_ context.Context) ([]transition.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]transition.Rule(nil), m.Rules...), nil
}

func (m *Memory) UpsertTransitionRule(_ context.Context, r transition.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.Rules {
		if m.Rules[i].FromStage == r.FromStage && m.Rules[i].ToStage == r.ToStage {
			m.Rules[i].Enabled = r.Enabled
			return nil
		}
	}
	m.Rules = append(m.Rules, r)
	return nil
}

func (m *Memory) DeleteTransitionRule(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	kept := m.Rules[:0]
	for _, r := range m.Rules {
		if r.FromStage == from && r.ToStage == to {
			continue
		}
		kept = append(kept, r)
	}
	m.Rules = kept
	return nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (*store.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Settings[key]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) PutSetting(_ context.Context, key string, value json.RawMessage, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Settings[key] = &store.Setting{
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *Memory) Migrate(_ context.Context) error { return m.Err }
func (m *Memory) Close() error                   { return nil }

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
