package database

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/ledger/internal/core"
)

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	conditions []string
	args       []any
}

// add appends a predicate. expr holds one %d verb for the placeholder index.
func (w *whereBuilder) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(expr, len(w.args)))
}

// build returns " WHERE ..." (or "") and the arguments in placeholder order.
func (w *whereBuilder) build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

// nextArg is the placeholder index of the next argument.
func (w *whereBuilder) nextArg() int {
	return len(w.args) + 1
}

// recordFilter translates a RecordFilter into predicates on inventory_data.
func recordFilter(f core.RecordFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.StartDate != nil {
		w.add("date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("date <= $%d", *f.EndDate)
	}
	if f.SKU != "" {
		w.add("sku = $%d", f.SKU)
	}
	if f.Supplier != "" {
		w.add("supplier = $%d", f.Supplier)
	}
	if f.ProductNameLike != "" {
		w.add(`product_name ILIKE $%d ESCAPE '\'`, "%"+escapeLike(f.ProductNameLike)+"%")
	}
	return w
}

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
