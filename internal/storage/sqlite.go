package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxishq/praxis/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	personality TEXT,
	instructions TEXT,
	goals TEXT,
	constraints TEXT,
	allowed_tools TEXT,
	denied_tools TEXT,
	budgets TEXT,
	provider TEXT,
	model TEXT,
	temperature REAL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	status TEXT NOT NULL,
	trigger_spec TEXT,
	summary TEXT,
	vars TEXT,
	error TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	step_count INTEGER NOT NULL DEFAULT 0,
	tool_calls INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	started_at TEXT,
	finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_executions_agent_created ON executions(agent_id, created_at);

CREATE TABLE IF NOT EXISTS execution_steps (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL,
	number INTEGER NOT NULL,
	kind TEXT NOT NULL,
	reasoning TEXT,
	tool_name TEXT,
	tool_input TEXT,
	tool_output TEXT,
	tokens INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	UNIQUE(execution_id, number)
);

CREATE TABLE IF NOT EXISTS tool_call_logs (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	status TEXT NOT NULL,
	input TEXT,
	output TEXT,
	error TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	duration_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tool_call_logs_execution ON tool_call_logs(execution_id);

CREATE TABLE IF NOT EXISTS approvals (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	tool_description TEXT,
	input TEXT,
	risk TEXT NOT NULL,
	status TEXT NOT NULL,
	resolved_by TEXT,
	resolution_note TEXT,
	resolved_at TEXT,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding TEXT,
	confidence REAL NOT NULL DEFAULT 0,
	importance INTEGER NOT NULL DEFAULT 0,
	subject TEXT,
	tags TEXT,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TEXT,
	expires_at TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id);

CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	execution_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	actions TEXT,
	lessons TEXT,
	should_repeat INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_agent ON episodes(agent_id, created_at);
`

// NewSQLiteStoreSet opens (or creates) a SQLite database at path and
// returns a StoreSet backed by it. Pass ":memory:" for an ephemeral
// database.
func NewSQLiteStoreSet(path string) (*StoreSet, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	return &StoreSet{
		Agents:     &sqliteAgentStore{db: db},
		Executions: &sqliteExecutionStore{db: db},
		ToolCalls:  &sqliteToolCallLogStore{db: db},
		Approvals:  &sqliteApprovalStore{db: db},
		Memories:   &sqliteMemoryStore{db: db},
		Episodes:   &sqliteEpisodeStore{db: db},
		closer:     db.Close,
	}, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}

type sqliteAgentStore struct {
	db *sql.DB
}

func (s *sqliteAgentStore) Create(ctx context.Context, agent *models.AgentConfig) error {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}
	agent.UpdatedAt = agent.CreatedAt
	_, err := s.db.ExecContext(ctx, `INSERT INTO agents
		(id, tenant_id, name, slug, is_active, personality, instructions, goals, constraints,
		 allowed_tools, denied_tools, budgets, provider, model, temperature, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, agent.TenantID, agent.Name, agent.Slug, boolToInt(agent.IsActive),
		agent.Personality, agent.Instructions, encodeJSON(agent.Goals), encodeJSON(agent.Constraints),
		encodeJSON(agent.AllowedTools), encodeJSON(agent.DeniedTools), encodeJSON(agent.Budgets),
		agent.Provider, agent.Model, agent.Temperature, encodeTime(agent.CreatedAt), encodeTime(agent.UpdatedAt))
	return err
}

func (s *sqliteAgentStore) Get(ctx context.Context, id string) (*models.AgentConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tenant_id, name, slug, is_active, personality,
		instructions, goals, constraints, allowed_tools, denied_tools, budgets, provider, model,
		temperature, created_at, updated_at FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*models.AgentConfig, error) {
	var a models.AgentConfig
	var active int
	var goals, constraints, allowed, denied, budgets, createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Slug, &active, &a.Personality,
		&a.Instructions, &goals, &constraints, &allowed, &denied, &budgets,
		&a.Provider, &a.Model, &a.Temperature, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	decodeJSON(goals, &a.Goals)
	decodeJSON(constraints, &a.Constraints)
	decodeJSON(allowed, &a.AllowedTools)
	decodeJSON(denied, &a.DeniedTools)
	decodeJSON(budgets, &a.Budgets)
	a.CreatedAt = decodeTime(createdAt)
	a.UpdatedAt = decodeTime(updatedAt)
	return &a, nil
}

func (s *sqliteAgentStore) Update(ctx context.Context, agent *models.AgentConfig) error {
	agent.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET tenant_id = ?, name = ?, slug = ?,
		is_active = ?, personality = ?, instructions = ?, goals = ?, constraints = ?,
		allowed_tools = ?, denied_tools = ?, budgets = ?, provider = ?, model = ?,
		temperature = ?, updated_at = ? WHERE id = ?`,
		agent.TenantID, agent.Name, agent.Slug, boolToInt(agent.IsActive), agent.Personality,
		agent.Instructions, encodeJSON(agent.Goals), encodeJSON(agent.Constraints),
		encodeJSON(agent.AllowedTools), encodeJSON(agent.DeniedTools), encodeJSON(agent.Budgets),
		agent.Provider, agent.Model, agent.Temperature, encodeTime(agent.UpdatedAt), agent.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteAgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type sqliteExecutionStore struct {
	db *sql.DB
}

func (s *sqliteExecutionStore) Create(ctx context.Context, exec *models.Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions
		(id, tenant_id, agent_id, status, trigger_spec, summary, vars, error, input_tokens,
		 output_tokens, step_count, tool_calls, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.TenantID, exec.AgentID, string(exec.Status), encodeJSON(exec.Trigger),
		exec.Summary, encodeJSON(exec.Vars), exec.Error, exec.InputTokens, exec.OutputTokens,
		exec.StepCount, exec.ToolCalls, encodeTime(exec.CreatedAt), encodeTime(exec.StartedAt),
		encodeTime(exec.FinishedAt))
	return err
}

func (s *sqliteExecutionStore) Get(ctx context.Context, id string) (*models.Execution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tenant_id, agent_id, status, trigger_spec, summary,
		vars, error, input_tokens, output_tokens, step_count, tool_calls, created_at,
		started_at, finished_at FROM executions WHERE id = ?`, id)

	var e models.Execution
	var status, trigger, vars, createdAt, startedAt, finishedAt string
	err := row.Scan(&e.ID, &e.TenantID, &e.AgentID, &status, &trigger, &e.Summary, &vars,
		&e.Error, &e.InputTokens, &e.OutputTokens, &e.StepCount, &e.ToolCalls,
		&createdAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Status = models.ExecutionStatus(status)
	decodeJSON(trigger, &e.Trigger)
	decodeJSON(vars, &e.Vars)
	e.CreatedAt = decodeTime(createdAt)
	e.StartedAt = decodeTime(startedAt)
	e.FinishedAt = decodeTime(finishedAt)
	return &e, nil
}

func (s *sqliteExecutionStore) Update(ctx context.Context, exec *models.Execution) error {
	res, err := s.db.ExecContext(ctx, `UPDATE executions SET status = ?, summary = ?, vars = ?,
		error = ?, input_tokens = ?, output_tokens = ?, step_count = ?, tool_calls = ?,
		started_at = ?, finished_at = ? WHERE id = ?`,
		string(exec.Status), exec.Summary, encodeJSON(exec.Vars), exec.Error, exec.InputTokens,
		exec.OutputTokens, exec.StepCount, exec.ToolCalls, encodeTime(exec.StartedAt),
		encodeTime(exec.FinishedAt), exec.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteExecutionStore) UpdateStatus(ctx context.Context, id string, from, to models.ExecutionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE executions SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing rows from lost races.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

func (s *sqliteExecutionStore) AppendStep(ctx context.Context, step *models.ExecutionStep) error {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO execution_steps
		(id, execution_id, number, kind, reasoning, tool_name, tool_input, tool_output,
		 tokens, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.ExecutionID, step.Number, string(step.Kind), step.Reasoning,
		step.ToolName, string(step.ToolInput), step.ToolOutput, step.Tokens,
		encodeTime(step.StartedAt), int64(step.Duration))
	return err
}

func (s *sqliteExecutionStore) ListSteps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, execution_id, number, kind, reasoning,
		tool_name, tool_input, tool_output, tokens, started_at, duration_ns
		FROM execution_steps WHERE execution_id = ? ORDER BY number`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExecutionStep
	for rows.Next() {
		var st models.ExecutionStep
		var kind, toolInput, startedAt string
		var durationNS int64
		if err := rows.Scan(&st.ID, &st.ExecutionID, &st.Number, &kind, &st.Reasoning,
			&st.ToolName, &toolInput, &st.ToolOutput, &st.Tokens, &startedAt, &durationNS); err != nil {
			return nil, err
		}
		st.Kind = models.StepKind(kind)
		if toolInput != "" {
			st.ToolInput = json.RawMessage(toolInput)
		}
		st.StartedAt = decodeTime(startedAt)
		st.Duration = time.Duration(durationNS)
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (s *sqliteExecutionStore) CountForAgentSince(ctx context.Context, agentID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions
		WHERE agent_id = ? AND created_at >= ?`, agentID, encodeTime(since)).Scan(&n)
	return n, err
}

type sqliteToolCallLogStore struct {
	db *sql.DB
}

func (s *sqliteToolCallLogStore) Create(ctx context.Context, log *models.ToolCallLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tool_call_logs
		(id, execution_id, agent_id, tool_name, status, input, output, error, started_at,
		 finished_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.ExecutionID, log.AgentID, log.ToolName, string(log.Status),
		string(log.Input), log.Output, log.Error, encodeTime(log.StartedAt),
		encodeTime(log.FinishedAt), int64(log.Duration))
	return err
}

func (s *sqliteToolCallLogStore) Update(ctx context.Context, log *models.ToolCallLog) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tool_call_logs SET status = ?, output = ?,
		error = ?, finished_at = ?, duration_ns = ? WHERE id = ?`,
		string(log.Status), log.Output, log.Error, encodeTime(log.FinishedAt),
		int64(log.Duration), log.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteToolCallLogStore) ListByExecution(ctx context.Context, executionID string) ([]*models.ToolCallLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, execution_id, agent_id, tool_name, status,
		input, output, error, started_at, finished_at, duration_ns
		FROM tool_call_logs WHERE execution_id = ? ORDER BY started_at`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ToolCallLog
	for rows.Next() {
		var l models.ToolCallLog
		var status, input, startedAt, finishedAt string
		var durationNS int64
		if err := rows.Scan(&l.ID, &l.ExecutionID, &l.AgentID, &l.ToolName, &status, &input,
			&l.Output, &l.Error, &startedAt, &finishedAt, &durationNS); err != nil {
			return nil, err
		}
		l.Status = models.ToolCallStatus(status)
		if input != "" {
			l.Input = json.RawMessage(input)
		}
		l.StartedAt = decodeTime(startedAt)
		l.FinishedAt = decodeTime(finishedAt)
		l.Duration = time.Duration(durationNS)
		out = append(out, &l)
	}
	return out, rows.Err()
}

type sqliteApprovalStore struct {
	db *sql.DB
}

func (s *sqliteApprovalStore) Create(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO approvals
		(id, execution_id, agent_id, tool_name, tool_description, input, risk, status,
		 resolved_by, resolution_note, resolved_at, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ExecutionID, req.AgentID, req.ToolName, req.ToolDescription,
		string(req.Input), string(req.Risk), string(req.Status), req.ResolvedBy,
		req.ResolutionNote, encodeTime(req.ResolvedAt), encodeTime(req.CreatedAt),
		encodeTime(req.ExpiresAt))
	return err
}

func (s *sqliteApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, execution_id, agent_id, tool_name,
		tool_description, input, risk, status, resolved_by, resolution_note, resolved_at,
		created_at, expires_at FROM approvals WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanApproval(rows)
}

func scanApproval(rows *sql.Rows) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	var input, risk, status, resolvedAt, createdAt, expiresAt string
	if err := rows.Scan(&a.ID, &a.ExecutionID, &a.AgentID, &a.ToolName, &a.ToolDescription,
		&input, &risk, &status, &a.ResolvedBy, &a.ResolutionNote, &resolvedAt,
		&createdAt, &expiresAt); err != nil {
		return nil, err
	}
	if input != "" {
		a.Input = json.RawMessage(input)
	}
	a.Risk = models.RiskLevel(risk)
	a.Status = models.ApprovalStatus(status)
	a.ResolvedAt = decodeTime(resolvedAt)
	a.CreatedAt = decodeTime(createdAt)
	a.ExpiresAt = decodeTime(expiresAt)
	return &a, nil
}

func (s *sqliteApprovalStore) Resolve(ctx context.Context, id string, to models.ApprovalStatus, by, note string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE approvals SET status = ?, resolved_by = ?,
		resolution_note = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(to), by, note, encodeTime(at), id, string(models.ApprovalPending))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

func (s *sqliteApprovalStore) ListPending(ctx context.Context, agentID string) ([]*models.ApprovalRequest, error) {
	query := `SELECT id, execution_id, agent_id, tool_name, tool_description, input, risk,
		status, resolved_by, resolution_note, resolved_at, created_at, expires_at
		FROM approvals WHERE status = ?`
	args := []any{string(models.ApprovalPending)}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at`
	return s.list(ctx, query, args...)
}

func (s *sqliteApprovalStore) ListExpired(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	return s.list(ctx, `SELECT id, execution_id, agent_id, tool_name, tool_description, input,
		risk, status, resolved_by, resolution_note, resolved_at, created_at, expires_at
		FROM approvals WHERE status = ? AND expires_at < ?`,
		string(models.ApprovalPending), encodeTime(now))
}

func (s *sqliteApprovalStore) list(ctx context.Context, query string, args ...any) ([]*models.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type sqliteMemoryStore struct {
	db *sql.DB
}

func (s *sqliteMemoryStore) Insert(ctx context.Context, mem *models.Memory) error {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	var expires string
	if mem.ExpiresAt != nil {
		expires = encodeTime(*mem.ExpiresAt)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO memories
		(id, agent_id, kind, content, embedding, confidence, importance, subject, tags,
		 access_count, last_accessed_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.AgentID, string(mem.Kind), mem.Content, encodeJSON(mem.Embedding),
		mem.Confidence, mem.Importance, mem.Subject, encodeJSON(mem.Tags), mem.AccessCount,
		encodeTime(mem.LastAccessedAt), expires, encodeTime(mem.CreatedAt))
	return err
}

func (s *sqliteMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanMemory(rows)
}

const memorySelect = `SELECT id, agent_id, kind, content, embedding, confidence, importance,
	subject, tags, access_count, last_accessed_at, expires_at, created_at FROM memories`

func scanMemory(rows *sql.Rows) (*models.Memory, error) {
	var m models.Memory
	var kind, embedding, tags, lastAccessed, expires, createdAt string
	if err := rows.Scan(&m.ID, &m.AgentID, &kind, &m.Content, &embedding, &m.Confidence,
		&m.Importance, &m.Subject, &tags, &m.AccessCount, &lastAccessed, &expires,
		&createdAt); err != nil {
		return nil, err
	}
	m.Kind = models.MemoryKind(kind)
	decodeJSON(embedding, &m.Embedding)
	decodeJSON(tags, &m.Tags)
	m.LastAccessedAt = decodeTime(lastAccessed)
	if expires != "" {
		t := decodeTime(expires)
		m.ExpiresAt = &t
	}
	m.CreatedAt = decodeTime(createdAt)
	return &m, nil
}

func (s *sqliteMemoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteMemoryStore) List(ctx context.Context, agentID string, kinds []models.MemoryKind, subject string) ([]*models.Memory, error) {
	query := memorySelect + ` WHERE agent_id = ?`
	args := []any{agentID}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + repeatPlaceholder(len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteMemoryStore) Count(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE agent_id = ?`, agentID).Scan(&n)
	return n, err
}

func (s *sqliteMemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET access_count = access_count + 1,
		last_accessed_at = ? WHERE id = ?`, encodeTime(at), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type sqliteEpisodeStore struct {
	db *sql.DB
}

func (s *sqliteEpisodeStore) Insert(ctx context.Context, ep *models.Episode) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO episodes
		(id, agent_id, execution_id, outcome, actions, lessons, should_repeat, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.AgentID, ep.ExecutionID, string(ep.Outcome), encodeJSON(ep.Actions),
		ep.Lessons, boolToInt(ep.ShouldRepeat), encodeTime(ep.CreatedAt))
	return err
}

func (s *sqliteEpisodeStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Episode, error) {
	return s.list(ctx, `SELECT id, agent_id, execution_id, outcome, actions, lessons,
		should_repeat, created_at FROM episodes WHERE agent_id = ?
		ORDER BY created_at DESC LIMIT ?`, agentID, normalizeLimit(limit))
}

func (s *sqliteEpisodeStore) ListByOutcome(ctx context.Context, agentID string, outcome models.EpisodeOutcome, limit int) ([]*models.Episode, error) {
	return s.list(ctx, `SELECT id, agent_id, execution_id, outcome, actions, lessons,
		should_repeat, created_at FROM episodes WHERE agent_id = ? AND outcome = ?
		ORDER BY created_at DESC LIMIT ?`, agentID, string(outcome), normalizeLimit(limit))
}

func (s *sqliteEpisodeStore) list(ctx context.Context, query string, args ...any) ([]*models.Episode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Episode
	for rows.Next() {
		var ep models.Episode
		var outcome, actions, createdAt string
		var shouldRepeat int
		if err := rows.Scan(&ep.ID, &ep.AgentID, &ep.ExecutionID, &outcome, &actions,
			&ep.Lessons, &shouldRepeat, &createdAt); err != nil {
			return nil, err
		}
		ep.Outcome = models.EpisodeOutcome(outcome)
		decodeJSON(actions, &ep.Actions)
		ep.ShouldRepeat = shouldRepeat != 0
		ep.CreatedAt = decodeTime(createdAt)
		out = append(out, &ep)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
