package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/safemac-dev/safemac/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "safemac.db"

// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
// and no database exists.
var ErrDatabaseNotFound = errors.New("history database not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for check and protection history.
type HistoryDB struct {
	db *sql.DB

	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; history is written from one goroutine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	PRAGMA foreign_keys = ON;

	-- One row per site per check run
	CREATE TABLE IF NOT EXISTS check_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		site TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		finding_count INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		risk_summary TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_site ON check_reports(site);
	CREATE INDEX IF NOT EXISTS idx_reports_run ON check_reports(run_id);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON check_reports(started_at);

	-- Findings are denormalized for querying by path, rule or action
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES check_reports(id) ON DELETE CASCADE,
		run_id TEXT NOT NULL,
		site TEXT NOT NULL,
		rule TEXT NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		path TEXT NOT NULL,
		hit_count INTEGER NOT NULL DEFAULT 1,
		action TEXT,
		backup_path TEXT,
		digest TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_findings_site ON findings(site);
	CREATE INDEX IF NOT EXISTS idx_findings_path ON findings(path);

	-- One row per site per lock/unlock run
	CREATE TABLE IF NOT EXISTS protection_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		site TEXT NOT NULL,
		operation TEXT NOT NULL,
		ok INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		error TEXT,
		elapsed_ms INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_protection_site ON protection_runs(site);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCheckReport stores a check report and its findings in one transaction.
// It returns the report's database ID.
func (h *HistoryDB) SaveCheckReport(ctx context.Context, report *model.CheckReport) (id int64, err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	riskJSON, err := json.Marshal(riskSummary(report))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO check_reports (run_id, site, started_at, finished_at, finding_count, cancelled, risk_summary, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Site,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		len(report.Findings),
		report.Cancelled,
		string(riskJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save check report: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}

	for _, f := range report.Findings {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO findings (report_id, run_id, site, rule, kind, severity, path, hit_count, action, backup_path, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, report.RunID, report.Site, f.Rule, string(f.Kind), f.SeverityText,
			f.Path, f.Count, string(f.Action), f.BackupPath, f.Digest,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save finding: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit check report: %w", err)
	}
	return id, nil
}

func riskSummary(report *model.CheckReport) map[string]int {
	summary := make(map[string]int)
	for _, f := range report.Findings {
		summary[f.SeverityText]++
	}
	return summary
}

// GetCheckReportByID retrieves a check report by its database ID.
// It returns nil, nil when no such report exists.
func (h *HistoryDB) GetCheckReportByID(ctx context.Context, id int64) (*model.CheckReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM check_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check report: %w", err)
	}

	var report model.CheckReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	restoreSeverity(&report)
	return &report, nil
}

// restoreSeverity fills Severity, which is not serialized, from the kind.
func restoreSeverity(report *model.CheckReport) {
	for i := range report.Findings {
		report.Findings[i].Severity = model.GetSeverity(report.Findings[i].Kind)
	}
}

// CheckReportMetadata contains summary information about a stored check report.
type CheckReportMetadata struct {
	ID           int64
	RunID        string
	Site         string
	StartedAt    time.Time
	FindingCount int
	Cancelled    bool

	// RiskSummary contains counts of findings by severity level.
	RiskSummary map[string]int
}

// GetCheckHistory returns report metadata, newest first. An empty site
// returns every site. A limit of zero or less returns everything.
func (h *HistoryDB) GetCheckHistory(ctx context.Context, site string, limit int) ([]CheckReportMetadata, error) {
	query := `
	SELECT id, run_id, site, started_at, finding_count, cancelled, risk_summary
	FROM check_reports
	WHERE (? = '' OR site = ?)
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, query, site, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get check history: %w", err)
	}
	defer rows.Close()

	results := make([]CheckReportMetadata, 0)
	for rows.Next() {
		var meta CheckReportMetadata
		var started string
		var riskJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Site, &started, &meta.FindingCount, &meta.Cancelled, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)

		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListCheckedSites returns every site with at least one stored check report.
func (h *HistoryDB) ListCheckedSites(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT site FROM check_reports ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := make([]string, 0)
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// FindingRecord is a stored finding.
type FindingRecord struct {
	ReportID   int64
	RunID      string
	Site       string
	Rule       string
	Kind       model.FindingKind
	Severity   string
	Path       string
	Count      int
	Action     model.Action
	BackupPath string
	Digest     string
}

// GetRemediations returns findings that were acted on, newest first. These
// are the files an operator may need to restore.
func (h *HistoryDB) GetRemediations(ctx context.Context, site string) ([]FindingRecord, error) {
	query := `
	SELECT f.report_id, f.run_id, f.site, f.rule, f.kind, f.severity, f.path,
	       f.hit_count, COALESCE(f.action, ''), COALESCE(f.backup_path, ''), COALESCE(f.digest, '')
	FROM findings f
	JOIN check_reports r ON r.id = f.report_id
	WHERE f.action IN (?, ?) AND (? = '' OR f.site = ?)
	ORDER BY r.started_at DESC, f.id
	`

	rows, err := h.db.QueryContext(ctx, query,
		string(model.ActionQuarantined), string(model.ActionReplaced), site, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get remediations: %w", err)
	}
	defer rows.Close()

	records := make([]FindingRecord, 0)
	for rows.Next() {
		var r FindingRecord
		var kind, action string
		if err := rows.Scan(&r.ReportID, &r.RunID, &r.Site, &r.Rule, &kind, &r.Severity, &r.Path,
			&r.Count, &action, &r.BackupPath, &r.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		r.Kind = model.FindingKind(kind)
		r.Action = model.Action(action)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ProtectionRecord is a stored lock or unlock result for one site.
type ProtectionRecord struct {
	ID         int64
	RunID      string
	Site       string
	Operation  model.Operation
	OK         bool
	Entries    int
	Failures   int
	Error      string
	Elapsed    time.Duration
	RecordedAt time.Time
}

// SaveProtectionRun stores the per-site results of one lock or unlock run.
func (h *HistoryDB) SaveProtectionRun(ctx context.Context, runID string, results []model.SiteResult) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := formatTime(time.Now())
	for _, r := range results {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO protection_runs (run_id, site, operation, ok, entries, failures, error, elapsed_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, r.Site, string(r.Operation), r.OK, r.Entries, r.Failures,
			r.ErrorMessage, r.Elapsed.Milliseconds(), now,
		)
		if err != nil {
			return fmt.Errorf("failed to save protection result: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit protection run: %w", err)
	}
	return nil
}

// GetProtectionHistory returns protection records, newest first. An empty
// site returns every site. A limit of zero or less returns everything.
func (h *HistoryDB) GetProtectionHistory(ctx context.Context, site string, limit int) ([]ProtectionRecord, error) {
	query := `
	SELECT id, run_id, site, operation, ok, entries, failures, COALESCE(error, ''), elapsed_ms, recorded_at
	FROM protection_runs
	WHERE (? = '' OR site = ?)
	ORDER BY recorded_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, query, site, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get protection history: %w", err)
	}
	defer rows.Close()

	records := make([]ProtectionRecord, 0)
	for rows.Next() {
		var r ProtectionRecord
		var op, recorded string
		var elapsedMS int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Site, &op, &r.OK, &r.Entries, &r.Failures,
			&r.Error, &elapsedMS, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan protection record: %w", err)
		}
		r.Operation = model.Operation(op)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.RecordedAt = parseTimestamp(recorded)
		records = append(records, r)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may appear in the
// database. The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
