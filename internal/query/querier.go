package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FlowVane/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// PathShare is the decision share one spine carried for a leaf pair.
type PathShare struct {
	Via       string  `json:"via"`
	PathID    int32   `json:"path_id"`
	Decisions uint64  `json:"decisions"`
	Share     float64 `json:"share"`
}

// LinkPoint is one utilization observation of a link.
type LinkPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Utilization float64   `json:"utilization"`
	DropCount   uint64    `json:"drop_count"`
	Stale       bool      `json:"stale"`
}

// FlowTraceEntry is one routing decision taken for a flow.
type FlowTraceEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Via        string    `json:"via"`
	PathID     int32     `json:"path_id"`
	Strategy   string    `json:"strategy"`
	NewFlowlet bool      `json:"new_flowlet"`
}

// TraceFilter selects the decisions of interest by flow key column.
// Only the five-tuple columns are accepted.
type TraceFilter map[string]string

// Querier answers read-side questions over the persisted decision and link
// stats tables.
type Querier interface {
	PathShares(ctx context.Context, srcLeaf, dstLeaf string, since time.Time) ([]PathShare, error)
	LinkHistory(ctx context.Context, link string, since time.Time, limit int) ([]LinkPoint, error)
	TraceFlow(ctx context.Context, filter TraceFilter, since time.Time, limit int) ([]FlowTraceEntry, error)
}

type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a querier backed by ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// PathShares reports how routing decisions for one leaf pair distributed over
// the spines.
func (q *clickhouseQuerier) PathShares(ctx context.Context, srcLeaf, dstLeaf string, since time.Time) ([]PathShare, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			Via,
			any(PathID) AS PathID,
			COUNT(*) AS Decisions
		FROM path_decisions
		WHERE SrcLeaf = ? AND DstLeaf = ?
	`)
	args := []interface{}{srcLeaf, dstLeaf}
	if !since.IsZero() {
		queryBuilder.WriteString(" AND Timestamp >= ?")
		args = append(args, since)
	}
	queryBuilder.WriteString(" GROUP BY Via ORDER BY Via")

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var shares []PathShare
	var total uint64
	for rows.Next() {
		var s PathShare
		if err := rows.Scan(&s.Via, &s.PathID, &s.Decisions); err != nil {
			return nil, fmt.Errorf("failed to scan path share: %w", err)
		}
		total += s.Decisions
		shares = append(shares, s)
	}
	for i := range shares {
		if total > 0 {
			shares[i].Share = float64(shares[i].Decisions) / float64(total)
		}
	}
	return shares, nil
}

// LinkHistory returns recent utilization points for one link, newest first.
func (q *clickhouseQuerier) LinkHistory(ctx context.Context, link string, since time.Time, limit int) ([]LinkPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT Timestamp, Utilization, DropCount, Stale
		FROM link_stats
		WHERE Link = ?
	`)
	args := []interface{}{link}
	if !since.IsZero() {
		queryBuilder.WriteString(" AND Timestamp >= ?")
		args = append(args, since)
	}
	queryBuilder.WriteString(" ORDER BY Timestamp DESC LIMIT ?")
	args = append(args, limit)

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var points []LinkPoint
	for rows.Next() {
		var p LinkPoint
		var stale uint8
		if err := rows.Scan(&p.Timestamp, &p.Utilization, &p.DropCount, &stale); err != nil {
			return nil, fmt.Errorf("failed to scan link point: %w", err)
		}
		p.Stale = stale != 0
		points = append(points, p)
	}
	return points, nil
}

// TraceFlow returns the decision history matching the filter, oldest first.
func (q *clickhouseQuerier) TraceFlow(ctx context.Context, filter TraceFilter, since time.Time, limit int) ([]FlowTraceEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT Timestamp, Via, PathID, Strategy, NewFlowlet
		FROM path_decisions
	`)

	var whereClauses []string
	args := []interface{}{}
	for key, value := range filter {
		// Basic validation to prevent arbitrary column injection
		switch key {
		case "SrcIP", "DstIP", "SrcPort", "DstPort", "Protocol":
			whereClauses = append(whereClauses, fmt.Sprintf("%s = ?", key))
			args = append(args, value)
		default:
			return nil, fmt.Errorf("unsupported flow key: %s, only SrcIP, DstIP, SrcPort, DstPort, Protocol are allowed", key)
		}
	}
	if !since.IsZero() {
		whereClauses = append(whereClauses, "Timestamp >= ?")
		args = append(args, since)
	}
	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY Timestamp ASC LIMIT ?")
	args = append(args, limit)

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var entries []FlowTraceEntry
	for rows.Next() {
		var e FlowTraceEntry
		var newFlowlet uint8
		if err := rows.Scan(&e.Timestamp, &e.Via, &e.PathID, &e.Strategy, &newFlowlet); err != nil {
			return nil, fmt.Errorf("failed to scan trace entry: %w", err)
		}
		e.NewFlowlet = newFlowlet != 0
		entries = append(entries, e)
	}
	return entries, nil
}
