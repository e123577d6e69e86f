package workflow

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// exactPlaceholderRe matches a parameter that is exactly one {key} reference,
// which resolves from the input with its original type preserved.
var exactPlaceholderRe = regexp.MustCompile(`^\{([A-Za-z0-9_]+)\}$`)

// vectorQueryRe detects queries that need the sqlite-vec extension.
var vectorQueryRe = regexp.MustCompile(`(?i)\bvec0\b|\bvec_distance_\w+\s*\(|\bvss0\b`)

// execDatabase runs SQL against an embedded sqlite file in the engine's
// database directory. The database name is flattened to a base name so a
// workflow cannot point at arbitrary files. Multiple statements split on ';'
// share one positional parameter list, consumed left to right.
func (e *Engine) execDatabase(ctx context.Context, node *Node, input any) Outcome {
	cfg := anyMap(node.Config)
	dbName := filepath.Base(stringField(cfg, "database", "workflow.db"))
	query := stringField(cfg, "query", "")
	if query == "" {
		return errorOutcome("database node requires a query")
	}
	// Placeholders in the query text substitute as strings; parameters
	// resolve separately below so their types survive.
	if s, ok := substitutePlaceholders(query, input).(string); ok {
		query = s
	}
	params := resolveDBParams(cfg["params"], input)

	if vectorQueryRe.MatchString(query) {
		// Parameters are still coerced so the caller sees the query it
		// would have run, but the embedded driver cannot load native
		// extensions, so the policy error is the outcome.
		for i, p := range params {
			params[i] = coerceVectorParam(p)
		}
		werr := &WorkflowError{
			Code:    "VECTOR_EXTENSION_UNAVAILABLE",
			Message: "query requires the sqlite-vec extension, which the embedded sqlite driver cannot load",
		}
		return errorOutcome(werr.Error())
	}

	if err := os.MkdirAll(e.opts.DBRoot, 0o755); err != nil {
		return errorOutcome(fmt.Sprintf("prepare database root: %v", err))
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		filepath.Join(e.opts.DBRoot, dbName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return errorOutcome(fmt.Sprintf("open database: %v", err))
	}
	defer db.Close()
	// Single writer: sqlite serializes writes anyway, and one connection
	// avoids SQLITE_BUSY churn under parallel foreach iterations.
	db.SetMaxOpenConns(1)

	operation := queryOperation(query)
	var data any
	for _, stmt := range splitStatements(query) {
		need := strings.Count(stmt, "?")
		if need > len(params) {
			return errorOutcome(fmt.Sprintf("statement expects %d parameters, %d remain", need, len(params)))
		}
		args := params[:need]
		params = params[need:]

		if isRowQuery(stmt) {
			rows, err := queryRows(ctx, db, stmt, args)
			if err != nil {
				return errorOutcome(fmt.Sprintf("Database error: %v", err))
			}
			data = rows
			continue
		}
		res, err := db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return errorOutcome(fmt.Sprintf("Database error: %v", err))
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		switch operation {
		case "create":
			data = map[string]any{"table_created": true}
		default:
			data = map[string]any{
				"rows_affected": affected,
				"last_row_id":   lastID,
			}
		}
	}

	output := map[string]any{
		"data":      data,
		"operation": operation,
		"database":  dbName,
		"query":     truncate(query, 100),
	}
	out := successOutcome(output)
	out.Stdout = fmt.Sprintf("Database %s completed on %s", operation, dbName)
	return out
}

// resolveDBParams maps the configured parameter list onto values. A string
// that is exactly "{key}" pulls the typed value from input; other strings get
// ordinary placeholder substitution; everything else passes through.
func resolveDBParams(raw any, input any) []any {
	list, ok := asSlice(raw)
	if !ok {
		return nil
	}
	in, _ := asMap(input)
	out := make([]any, 0, len(list))
	for _, p := range list {
		if s, ok := p.(string); ok {
			if m := exactPlaceholderRe.FindStringSubmatch(s); m != nil {
				if v, has := in[m[1]]; has {
					out = append(out, v)
					continue
				}
			}
			if sub, ok := substitutePlaceholders(s, input).(string); ok {
				out = append(out, sub)
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func splitStatements(query string) []string {
	var out []string
	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func queryOperation(query string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(fields) == 0 {
		return "unknown"
	}
	switch fields[0] {
	case "select", "insert", "update", "delete", "create", "drop", "pragma", "with":
		return fields[0]
	}
	return fields[0]
}

func isRowQuery(stmt string) bool {
	op := queryOperation(stmt)
	return op == "select" || op == "pragma" || op == "with"
}

// queryRows materializes a result set as a list of column-keyed maps. Text
// and blob columns arrive as []byte; text is converted, blobs stay bytes and
// get base64-coerced at the trace boundary.
func queryRows(ctx context.Context, db *sql.DB, stmt string, args []any) ([]any, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var out []any
	for rows.Next() {
		holders := make([]any, len(cols))
		for i := range holders {
			holders[i] = new(any)
		}
		if err := rows.Scan(holders...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			v := *(holders[i].(*any))
			if b, ok := v.([]byte); ok && !strings.EqualFold(types[i].DatabaseTypeName(), "BLOB") {
				v = string(b)
			}
			rec[col] = v
		}
		out = append(out, rec)
	}
	if out == nil {
		out = []any{}
	}
	return out, rows.Err()
}

// coerceVectorParam turns a little-endian float32 byte string (raw or base64)
// into the JSON array literal vector extensions expect.
func coerceVectorParam(p any) any {
	var raw []byte
	switch t := p.(type) {
	case []byte:
		raw = t
	case string:
		decoded, err := base64.StdEncoding.DecodeString(t)
		if err != nil || len(decoded) == 0 || len(decoded)%4 != 0 {
			return p
		}
		raw = decoded
	default:
		return p
	}
	if len(raw) == 0 || len(raw)%4 != 0 {
		return p
	}
	floats := make([]float32, len(raw)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	encoded, err := json.Marshal(floats)
	if err != nil {
		return p
	}
	return string(encoded)
}
