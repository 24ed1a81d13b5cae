package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/lib/pq"
)

// buildHistoryFilterClause constructs the WHERE clause for sales and receipt
// queries. dateColumn is the table's date column; placeholders start at startIndex.
func buildHistoryFilterClause(filter repository.HistoryFilter, dateColumn string, startIndex int) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex

	if len(filter.Products) > 0 {
		clauses = append(clauses, fmt.Sprintf("product = ANY($%d::text[])", idx))
		args = append(args, pq.Array(filter.Products))
		idx++
	}

	if !filter.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("%s >= $%d", dateColumn, idx))
		args = append(args, domain.TruncateDay(filter.From))
		idx++
	}

	if !filter.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("%s <= $%d", dateColumn, idx))
		args = append(args, domain.TruncateDay(filter.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// insertChunkSize keeps multi-row inserts well under the 65535 bind parameter limit.
const insertChunkSize = 1000

// chunks splits n items into [start, end) ranges of at most size items.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
