package payments_repo

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"library/internal/domain"
)

var dialect = goqu.Dialect("postgres")

// BuildListQuery renders the filtered payment listing as a prepared statement.
func BuildListQuery(filter domain.PaymentFilter) (string, []any, error) {
	ds := dialect.
		From(goqu.T("payments").As("p")).
		Join(goqu.T("borrowings").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("p.borrowing_id")))).
		Select(
			goqu.I("p.id"),
			goqu.I("p.borrowing_id"),
			goqu.I("p.payment_type"),
			goqu.I("p.payment_status"),
			goqu.I("p.amount_to_pay"),
			goqu.I("p.session_id"),
			goqu.I("p.session_url"),
			goqu.I("p.created_at"),
			goqu.I("p.updated_at"),
		)
	if filter.Status != nil {
		ds = ds.Where(goqu.I("p.payment_status").Eq(string(*filter.Status)))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.I("b.user_id").Eq(*filter.UserID))
	}
	return ds.Order(goqu.I("p.id").Desc()).Prepared(true).ToSQL()
}
