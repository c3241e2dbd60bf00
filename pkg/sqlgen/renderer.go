// Package sqlgen renders reconciliation rules as SQL. Queries are generated
// from the rule struct alone; previously rendered SQL text is never parsed
// or mutated.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/crosschema/reconcile-engine/pkg/models"
)

// QueryType selects which record population a rendered query returns.
type QueryType string

const (
	// QueryAll returns every record from both sides with a match_status
	// column marking each row matched or unmatched.
	QueryAll QueryType = "all"
	// QueryMatched returns only records present on both sides.
	QueryMatched QueryType = "matched"
	// QueryUnmatched returns source records with no target counterpart,
	// plus the reverse direction for bidirectional rules.
	QueryUnmatched QueryType = "unmatched"
)

// IsValidQueryType checks if the given query type is valid.
func IsValidQueryType(q QueryType) bool {
	return q == QueryAll || q == QueryMatched || q == QueryUnmatched
}

// Renderer turns a reconciliation rule into an executable SQL statement.
type Renderer interface {
	Render(rule *models.ReconciliationRule, queryType QueryType) (string, error)
}

type renderer struct{}

// NewRenderer creates a SQL renderer targeting ANSI SQL with double-quoted
// identifiers.
func NewRenderer() Renderer {
	return &renderer{}
}

var _ Renderer = (*renderer)(nil)

func (r *renderer) Render(rule *models.ReconciliationRule, queryType QueryType) (string, error) {
	if rule == nil {
		return "", fmt.Errorf("render: rule is nil")
	}
	if len(rule.SourceColumns) == 0 || len(rule.SourceColumns) != len(rule.TargetColumns) {
		return "", fmt.Errorf("render: rule %s has mismatched column lists (%d source, %d target)",
			rule.RuleID, len(rule.SourceColumns), len(rule.TargetColumns))
	}

	switch queryType {
	case QueryMatched:
		return r.renderMatched(rule), nil
	case QueryUnmatched:
		return r.renderUnmatched(rule), nil
	case QueryAll:
		return r.renderAll(rule), nil
	default:
		return "", fmt.Errorf("render: unknown query type %q", queryType)
	}
}

func (r *renderer) renderMatched(rule *models.ReconciliationRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s\n", selectList(rule, "src", rule.SourceColumns), selectList(rule, "tgt", rule.TargetColumns))
	fmt.Fprintf(&b, "FROM %s AS src\n", qualifiedTable(rule.SourceSchema, rule.SourceTable))
	fmt.Fprintf(&b, "INNER JOIN %s AS tgt\n", qualifiedTable(rule.TargetSchema, rule.TargetTable))
	fmt.Fprintf(&b, "  ON %s", joinCondition(rule))
	return b.String()
}

func (r *renderer) renderUnmatched(rule *models.ReconciliationRule) string {
	var b strings.Builder
	b.WriteString(unmatchedSide(rule, false))
	if rule.Bidirectional {
		b.WriteString("\nUNION ALL\n")
		b.WriteString(unmatchedSide(rule, true))
	}
	return b.String()
}

// unmatchedSide renders one direction of the unmatched query: a LEFT JOIN
// probing for absent counterparts. reversed swaps the probe direction for
// the bidirectional case.
func unmatchedSide(rule *models.ReconciliationRule, reversed bool) string {
	fromSchema, fromTable, fromCols := rule.SourceSchema, rule.SourceTable, rule.SourceColumns
	toSchema, toTable, toCols := rule.TargetSchema, rule.TargetTable, rule.TargetColumns
	fromAlias, toAlias := "src", "tgt"
	if reversed {
		fromSchema, fromTable, fromCols, toSchema, toTable, toCols = toSchema, toTable, toCols, fromSchema, fromTable, fromCols
		fromAlias, toAlias = "tgt", "src"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, '%s' AS missing_from\n", selectList(rule, fromAlias, fromCols), toTable)
	fmt.Fprintf(&b, "FROM %s AS %s\n", qualifiedTable(fromSchema, fromTable), fromAlias)
	fmt.Fprintf(&b, "LEFT JOIN %s AS %s\n", qualifiedTable(toSchema, toTable), toAlias)

	conds := make([]string, len(fromCols))
	for i := range fromCols {
		conds[i] = comparison(rule.MatchType,
			fromAlias+"."+quoteIdent(fromCols[i]),
			toAlias+"."+quoteIdent(toCols[i]))
	}
	fmt.Fprintf(&b, "  ON %s\n", strings.Join(conds, " AND "))
	fmt.Fprintf(&b, "WHERE %s.%s IS NULL", toAlias, quoteIdent(toCols[0]))
	return b.String()
}

func (r *renderer) renderAll(rule *models.ReconciliationRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s,\n", selectList(rule, "src", rule.SourceColumns), selectList(rule, "tgt", rule.TargetColumns))
	fmt.Fprintf(&b, "  CASE WHEN src.%s IS NOT NULL AND tgt.%s IS NOT NULL THEN 'matched' ELSE 'unmatched' END AS match_status\n",
		quoteIdent(rule.SourceColumns[0]), quoteIdent(rule.TargetColumns[0]))
	fmt.Fprintf(&b, "FROM %s AS src\n", qualifiedTable(rule.SourceSchema, rule.SourceTable))
	fmt.Fprintf(&b, "FULL OUTER JOIN %s AS tgt\n", qualifiedTable(rule.TargetSchema, rule.TargetTable))
	fmt.Fprintf(&b, "  ON %s", joinCondition(rule))
	return b.String()
}

func joinCondition(rule *models.ReconciliationRule) string {
	conds := make([]string, len(rule.SourceColumns))
	for i := range rule.SourceColumns {
		conds[i] = comparison(rule.MatchType,
			"src."+quoteIdent(rule.SourceColumns[i]),
			"tgt."+quoteIdent(rule.TargetColumns[i]))
	}
	return strings.Join(conds, " AND ")
}

// comparison builds one column comparison. Fuzzy and semantic rules compare
// case-insensitively on trimmed values; finer-grained similarity is the
// executing engine's concern, not the generator's.
func comparison(matchType models.MatchType, left, right string) string {
	switch matchType {
	case models.MatchTypeFuzzy, models.MatchTypeSemantic:
		return fmt.Sprintf("LOWER(TRIM(%s)) = LOWER(TRIM(%s))", left, right)
	default:
		return fmt.Sprintf("%s = %s", left, right)
	}
}

func selectList(rule *models.ReconciliationRule, alias string, columns []string) string {
	parts := make([]string, len(columns))
	prefix := rule.SourceTable
	if alias == "tgt" {
		prefix = rule.TargetTable
	}
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s.%s AS %s", alias, quoteIdent(col), quoteIdent(prefix+"_"+col))
	}
	return strings.Join(parts, ", ")
}

func qualifiedTable(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
