package querylang

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

const astCacheSize = 512

// Service parses query strings and dispatches execution to the store owning
// the target table. Parsed ASTs are cached by raw query string.
type Service struct {
	stores *telemetry.Stores
	cache  *lru.Cache[string, *query.Select]
	logger *logrus.Logger
}

// NewService creates a query service over the configured stores.
func NewService(stores *telemetry.Stores, logger *logrus.Logger) *Service {
	cache, _ := lru.New[string, *query.Select](astCacheSize)
	return &Service{stores: stores, cache: cache, logger: logger}
}

// Response is the query endpoint payload: the parsed AST is echoed for
// transparency alongside the rows.
type Response struct {
	AST          *query.Select    `json:"ast"`
	Rows         []map[string]any `json:"rows"`
	RowCount     int              `json:"row_count"`
	TotalMatched uint64           `json:"total_matched"`
}

// Parse parses and validates a query string, consulting the AST cache.
// The returned error is a *query.ParseError for syntax errors.
func (s *Service) Parse(input string) (*query.Select, error) {
	if sel, ok := s.cache.Get(input); ok {
		return sel, nil
	}

	sel, perr := Parse(input)
	if perr != nil {
		return nil, perr
	}
	if err := ValidateColumns(sel); err != nil {
		return nil, &query.ParseError{Line: 1, Column: 1, Message: err.Error()}
	}

	s.cache.Add(input, sel)
	return sel, nil
}

// Execute parses the query and runs it against the owning store.
func (s *Service) Execute(ctx context.Context, input string) (*Response, error) {
	sel, err := s.Parse(input)
	if err != nil {
		return nil, err
	}

	_, signal, err := ResolveTable(sel.From)
	if err != nil {
		return nil, &query.ParseError{Line: 1, Column: 1, Message: err.Error()}
	}

	var store telemetry.SQLQuerier
	switch signal {
	case SignalLogs:
		store = s.stores.Logs
	case SignalMetrics:
		store = s.stores.Metrics
	case SignalTraces:
		store = s.stores.Traces
	default:
		return nil, fmt.Errorf("no store for table %q", sel.From)
	}

	result, err := store.QuerySQL(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"table":         sel.From,
		"rows":          len(result.Rows),
		"total_matched": result.TotalMatched,
	}).Debug("Executed query")

	return &Response{
		AST:          sel,
		Rows:         result.Rows,
		RowCount:     len(result.Rows),
		TotalMatched: result.TotalMatched,
	}, nil
}
