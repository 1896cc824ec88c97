package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Stages ---

func (s *PostgresStore) ListStages(ctx context.Context) ([]*Stage, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, position FROM pipeline_stages ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []*Stage
	for rows.Next() {
		st := &Stage{}
		if err := rows.Scan(&st.ID, &st.Name, &st.Position); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

func (s *PostgresStore) UpsertStage(ctx context.Context, stage *Stage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_stages (id, name, position) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, position = EXCLUDED.position`,
		stage.ID, stage.Name, stage.Position)
	if err != nil {
		return fmt.Errorf("upsert stage: %w", err)
	}
	return nil
}

// --- Leads ---

const leadColumns = `id, name, company, owner, last_activity_at, next_meeting_at,
	priority_score, priority_bucket, created_at, updated_at`

func (s *PostgresStore) CreateLead(ctx context.Context, lead *Lead) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO leads (name, company, owner, last_activity_at, next_meeting_at, priority_score, priority_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		lead.Name, lead.Company, lead.Owner, lead.LastActivityAt, lead.NextMeetingAt,
		lead.PriorityScore, lead.PriorityBucket,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
}

func (s *PostgresStore) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]*Lead, error) {
	query, args := leadsQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *Lead) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE leads SET
			name = $2, company = $3, owner = $4,
			last_activity_at = $5, next_meeting_at = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		lead.ID, lead.Name, lead.Company, lead.Owner, lead.LastActivityAt, lead.NextMeetingAt,
	).Scan(&lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadPriority(ctx context.Context, id uuid.UUID, score float64, bucket scoring.Bucket) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE leads SET priority_score = $2, priority_bucket = $3, updated_at = now()
		WHERE id = $1`, id, score, string(bucket))
	if err != nil {
		return fmt.Errorf("update lead priority: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	l := &Lead{}
	err := row.Scan(
		&l.ID, &l.Name, &l.Company, &l.Owner, &l.LastActivityAt, &l.NextMeetingAt,
		&l.PriorityScore, &l.PriorityBucket, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// --- Deals ---

const dealColumns = `id, title, lead_id, owner, current_stage, stage_entered_at,
	sla_status, closed, created_at, updated_at`

func (s *PostgresStore) CreateDeal(ctx context.Context, deal *Deal) error {
	if deal.SLAStatus == "" {
		deal.SLAStatus = sla.StatusOK
	}
	var enteredAt interface{}
	if !deal.StageEnteredAt.IsZero() {
		enteredAt = deal.StageEnteredAt
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO deals (title, lead_id, owner, current_stage, stage_entered_at, sla_status, closed)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), $6, $7)
		RETURNING id, stage_entered_at, created_at, updated_at`,
		deal.Title, deal.LeadID, deal.Owner, deal.CurrentStage, enteredAt, string(deal.SLAStatus), deal.Closed,
	).Scan(&deal.ID, &deal.StageEnteredAt, &deal.CreatedAt, &deal.UpdatedAt)
}

func (s *PostgresStore) GetDeal(ctx context.Context, id uuid.UUID) (*Deal, error) {
	d, err := scanDeal(s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDeals(ctx context.Context, filter DealFilter) ([]*Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE 1=1`
	args := []interface{}{}
	n := 0

	if !filter.IncludeClosed {
		query += " AND NOT closed"
	}
	if filter.Stage != "" {
		n++
		query += fmt.Sprintf(" AND current_stage = $%d", n)
		args = append(args, filter.Stage)
	}
	if filter.Owner != "" {
		n++
		query += fmt.Sprintf(" AND owner = $%d", n)
		args = append(args, filter.Owner)
	}
	query += " ORDER BY stage_entered_at ASC"
	query, args = paginate(query, args, n, filter.Limit, filter.Offset)

	return s.queryDeals(ctx, query, args...)
}

// ListOpenDeals returns every open deal without pagination, for sweeps.
func (s *PostgresStore) ListOpenDeals(ctx context.Context) ([]*Deal, error) {
	return s.queryDeals(ctx, `SELECT `+dealColumns+` FROM deals WHERE NOT closed ORDER BY stage_entered_at ASC`)
}

func (s *PostgresStore) queryDeals(ctx context.Context, query string, args ...interface{}) ([]*Deal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var deals []*Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (s *PostgresStore) SetDealClosed(ctx context.Context, id uuid.UUID, closed bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE deals SET closed = $2, updated_at = now() WHERE id = $1`, id, closed)
	if err != nil {
		return fmt.Errorf("set deal closed: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDealSLAStatus(ctx context.Context, id uuid.UUID, stageEnteredAt time.Time, status sla.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deals SET sla_status = $3, updated_at = now()
		WHERE id = $1 AND stage_entered_at = $2 AND NOT closed`,
		id, stageEnteredAt, string(status))
	if err != nil {
		return false, fmt.Errorf("update deal sla status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) MoveDeal(ctx context.Context, id uuid.UUID, toStage, movedBy string, allow AllowFn) (*Deal, *StageMove, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deal, err := scanDeal(tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock deal: %w", err)
	}

	if deal.Closed {
		return deal, nil, ErrDealClosed
	}
	from := deal.CurrentStage
	if from == toStage {
		return deal, nil, nil
	}
	if allow != nil && !allow(from, toStage) {
		return deal, nil, ErrTransitionDenied
	}

	err = tx.QueryRow(ctx, `
		UPDATE deals SET current_stage = $2, stage_entered_at = now(), sla_status = 'ok', updated_at = now()
		WHERE id = $1
		RETURNING stage_entered_at, updated_at`, id, toStage,
	).Scan(&deal.StageEnteredAt, &deal.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("update deal stage: %w", err)
	}
	deal.CurrentStage = toStage
	deal.SLAStatus = sla.StatusOK

	move := &StageMove{DealID: id, FromStage: from, ToStage: toStage, MovedBy: movedBy}
	err = tx.QueryRow(ctx, `
		INSERT INTO deal_stage_moves (deal_id, from_stage, to_stage, moved_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, id, from, toStage, movedBy,
	).Scan(&move.ID, &move.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("record stage move: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit move: %w", err)
	}
	return deal, move, nil
}

func (s *PostgresStore) GetDealHistory(ctx context.Context, id uuid.UUID) ([]*StageMove, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, deal_id, from_stage, to_stage, moved_by, created_at
		FROM deal_stage_moves WHERE deal_id = $1
		ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("get deal history: %w", err)
	}
	defer rows.Close()

	var moves []*StageMove
	for rows.Next() {
		m := &StageMove{}
		if err := rows.Scan(&m.ID, &m.DealID, &m.FromStage, &m.ToStage, &m.MovedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func scanDeal(row pgx.Row) (*Deal, error) {
	d := &Deal{}
	var status string
	err := row.Scan(
		&d.ID, &d.Title, &d.LeadID, &d.Owner, &d.CurrentStage, &d.StageEnteredAt,
		&status, &d.Closed, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.SLAStatus = sla.Status(status)
	return d, nil
}

// --- SLA policies ---

func (s *PostgresStore) ListSLAPolicies(ctx context.Context) ([]sla.Policy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stage_id, max_hours, warning_threshold_hours FROM sla_policies ORDER BY stage_id`)
	if err != nil {
		return nil, fmt.Errorf("list sla policies: %w", err)
	}
	defer rows.Close()

	var policies []sla.Policy
	for rows.Next() {
		var p sla.Policy
		if err := rows.Scan(&p.StageID, &p.MaxHours, &p.WarningThresholdHours); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *PostgresStore) UpsertSLAPolicy(ctx context.Context, p sla.Policy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sla_policies (stage_id, max_hours, warning_threshold_hours)
		VALUES ($1, $2, $3)
		ON CONFLICT (stage_id) DO UPDATE SET
			max_hours = EXCLUDED.max_hours,
			warning_threshold_hours = EXCLUDED.warning_threshold_hours,
			updated_at = now()`,
		p.StageID, p.MaxHours, p.WarningThresholdHours)
	if err != nil {
		return fmt.Errorf("upsert sla policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSLAPolicy(ctx context.Context, stageID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sla_policies WHERE stage_id = $1`, stageID); err != nil {
		return fmt.Errorf("delete sla policy: %w", err)
	}
	return nil
}

// --- Transition rules ---

func (s *PostgresStore) ListTransitionRules(ctx context.Context) ([]transition.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT from_stage, to_stage, enabled FROM transition_rules ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list transition rules: %w", err)
	}
	defer rows.Close()

	var rules []transition.Rule
	for rows.Next() {
		var r transition.Rule
		if err := rows.Scan(&r.FromStage, &r.ToStage, &r.Enabled); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) UpsertTransitionRule(ctx context.Context, r transition.Rule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transition_rules (from_stage, to_stage, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_stage, to_stage) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`,
		r.FromStage, r.ToStage, r.Enabled)
	if err != nil {
		return fmt.Errorf("upsert transition rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTransitionRule(ctx context.Context, from, to string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transition_rules WHERE from_stage = $1 AND to_stage = $2`, from, to); err != nil {
		return fmt.Errorf("delete transition rule: %w", err)
	}
	return nil
}

// --- Settings ---

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (*Setting, error) {
	st := &Setting{Key: key}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value, updated_by, updated_at FROM settings WHERE key = $1`, key).
		Scan(&raw, &st.UpdatedBy, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	st.Value = json.RawMessage(raw)
	return st, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key string, value json.RawMessage, updatedBy string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_by) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()`,
		key, []byte(value), updatedBy)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

func leadsQuery(filter LeadFilter) (string, []interface{}) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Bucket != "" {
		n++
		query += fmt.Sprintf(" AND priority_bucket = $%d", n)
		args = append(args, filter.Bucket)
	}
	if filter.Owner != "" {
		n++
		query += fmt.Sprintf(" AND owner = $%d", n)
		args = append(args, filter.Owner)
	}
	if filter.ByID {
		if filter.AfterID != uuid.Nil {
			n++
			query += fmt.Sprintf(" AND id > $%d", n)
			args = append(args, filter.AfterID)
		}
		query += " ORDER BY id"
		return paginate(query, args, n, filter.Limit, 0)
	}
	query += " ORDER BY priority_score DESC NULLS LAST, created_at ASC"
	return paginate(query, args, n, filter.Limit, filter.Offset)
}

func paginate(query string, args []interface{}, n, limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, offset)
	}
	return query, args
}

var _ Store = (*PostgresStore)(nil)
