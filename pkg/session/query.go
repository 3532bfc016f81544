package session

// query.go - SQL execution and derived-dataset operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/pkg/filter"
	"github.com/quarrylabs/quarry/pkg/storage"
)

// ExecuteSQL runs a query against every registered dataset, persisted and
// transient alike, materializes the result as a new persisted dataset
// named sql_result_N, and returns that name. Engine errors are surfaced
// as ErrExecution with the engine's message intact.
func (s *Session) ExecuteSQL(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materialize(ctx, "sql_result", query)
}

// QueryIPC runs a query and returns the result directly as an Arrow IPC
// stream without registering a dataset or touching the catalog.
func (s *Session) QueryIPC(ctx context.Context, query string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := s.store.QueryIPC(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return buf, nil
}

// SortDataset produces a new persisted dataset with the source's rows
// ordered by the given columns, each paired with its own direction
// (descending[i] true sorts column i descending). The two slices must
// have equal length; a mismatch fails before any engine work. Ordering of
// equal keys follows the engine's ORDER BY and is not stable.
func (s *Session) SortDataset(ctx context.Context, name string, columns []string, descending []bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(columns) == 0 {
		return "", fmt.Errorf("%w: at least one sort column is required", ErrValidation)
	}
	if len(columns) != len(descending) {
		return "", fmt.Errorf("%w: %d sort columns but %d directions", ErrValidation, len(columns), len(descending))
	}

	ds := s.registry.lookup(name)
	if ds == nil {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	clauses := make([]string, len(columns))
	for i, col := range columns {
		dir := "ASC"
		if descending[i] {
			dir = "DESC"
		}
		clauses[i] = storage.QuoteIdent(col) + " " + dir
	}

	query := fmt.Sprintf(
		"SELECT * FROM %s ORDER BY %s",
		storage.QuoteIdent(ds.Name), strings.Join(clauses, ", "),
	)
	return s.materialize(ctx, ds.Name+"_sorted", query)
}

// FilterSQL produces a new persisted dataset holding exactly the source
// rows matching the boolean SQL predicate, with the source's schema.
func (s *Session) FilterSQL(ctx context.Context, name, predicate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE (%s)",
		storage.QuoteIdent(ds.Name), predicate,
	)
	return s.materialize(ctx, ds.Name+"_filtered", query)
}

// FilterSpec filters a dataset with a structured, injection-safe filter
// specification.
func (s *Session) FilterSpec(ctx context.Context, name string, spec filter.Spec) (string, error) {
	where, err := spec.WhereClause()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.FilterSQL(ctx, name, where)
}

// GroupBy produces a new persisted dataset grouping the source by the
// given columns with SQL aggregate expressions such as "COUNT(*)" or
// "AVG(score)".
func (s *Session) GroupBy(ctx context.Context, name string, groupColumns, aggExprs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(groupColumns) == 0 {
		return "", fmt.Errorf("%w: at least one group column is required", ErrValidation)
	}
	if len(aggExprs) == 0 {
		return "", fmt.Errorf("%w: at least one aggregate expression is required", ErrValidation)
	}

	ds := s.registry.lookup(name)
	if ds == nil {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	quoted := make([]string, len(groupColumns))
	for i, col := range groupColumns {
		quoted[i] = storage.QuoteIdent(col)
	}
	groupList := strings.Join(quoted, ", ")

	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s GROUP BY %s",
		groupList, strings.Join(aggExprs, ", "),
		storage.QuoteIdent(ds.Name), groupList,
	)
	return s.materialize(ctx, ds.Name+"_grouped", query)
}

// AddColumn produces a new persisted dataset extending the source with a
// calculated column, e.g. expr "salary * 12" as alias "annual_salary".
func (s *Session) AddColumn(ctx context.Context, name, expr, alias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateIdent(alias); err != nil {
		return "", err
	}

	ds := s.registry.lookup(name)
	if ds == nil {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	query := fmt.Sprintf(
		"SELECT *, (%s) AS %s FROM %s",
		expr, storage.QuoteIdent(alias), storage.QuoteIdent(ds.Name),
	)
	return s.materialize(ctx, ds.Name+"_calc", query)
}

// SummaryStats returns per-column summary statistics for a dataset as an
// Arrow IPC stream, using the engine's SUMMARIZE.
func (s *Session) SummaryStats(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	query := fmt.Sprintf("SUMMARIZE SELECT * FROM %s", storage.QuoteIdent(ds.Name))
	buf, err := s.store.QueryIPC(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return buf, nil
}

// ChartAggregate groups a dataset by one column and aggregates a value
// column, returning up to limit (label, value) rows sorted by value
// descending, as an Arrow IPC stream. aggKind is one of count, sum, avg,
// min, max; all but count require valueColumn.
func (s *Session) ChartAggregate(ctx context.Context, name, groupColumn, valueColumn, aggKind string, limit int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	var aggExpr string
	switch strings.ToLower(aggKind) {
	case "count":
		aggExpr = "COUNT(*)"
	case "sum", "avg", "min", "max":
		if valueColumn == "" {
			return nil, fmt.Errorf("%w: aggregation %q requires a value column", ErrValidation, aggKind)
		}
		aggExpr = fmt.Sprintf("%s(%s)", strings.ToUpper(aggKind), storage.QuoteIdent(valueColumn))
	default:
		return nil, fmt.Errorf("%w: unknown aggregation %q", ErrValidation, aggKind)
	}

	query := fmt.Sprintf(
		"SELECT %s AS label, %s AS value FROM %s GROUP BY %s ORDER BY value DESC LIMIT %d",
		storage.QuoteIdent(groupColumn), aggExpr,
		storage.QuoteIdent(ds.Name), storage.QuoteIdent(groupColumn), limit,
	)
	buf, err := s.store.QueryIPC(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return buf, nil
}

// materialize runs CREATE TABLE AS for a freshly allocated prefix_N name,
// registers the result as a persisted dataset, and returns its name. On
// any failure nothing stays behind: the registry and catalog are left as
// they were. Must be called with s.mu held.
func (s *Session) materialize(ctx context.Context, prefix, query string) (string, error) {
	name := s.allocateName(prefix)
	if err := s.store.CreateTableAs(ctx, name, query); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}
	if err := s.registerTable(ctx, name); err != nil {
		return "", err
	}
	s.logger.Info("dataset materialized", "name", name)
	return name, nil
}
