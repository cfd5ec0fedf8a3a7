package borrowings_repo

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"library/internal/domain"
)

var dialect = goqu.Dialect("postgres")

var borrowingColumns = []any{
	goqu.I("b.id"),
	goqu.I("b.user_id"),
	goqu.I("b.user_email"),
	goqu.I("b.book_id"),
	goqu.I("b.borrow_date"),
	goqu.I("b.expected_return_date"),
	goqu.I("b.actual_return_date"),
	goqu.I("b.is_active"),
	goqu.I("bk.title").As("book_title"),
	goqu.I("bk.author").As("book_author"),
	goqu.I("bk.cover").As("book_cover"),
	goqu.I("bk.copies").As("book_copies"),
	goqu.I("bk.daily_fee").As("book_daily_fee"),
}

func selectBorrowings() *goqu.SelectDataset {
	return dialect.
		From(goqu.T("borrowings").As("b")).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("bk.id").Eq(goqu.I("b.book_id")))).
		Select(borrowingColumns...)
}

// BuildListQuery renders the filtered borrowing listing as a prepared statement.
func BuildListQuery(filter domain.BorrowingFilter) (string, []any, error) {
	ds := selectBorrowings()
	if filter.IsActive != nil {
		ds = ds.Where(goqu.I("b.is_active").Eq(*filter.IsActive))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.I("b.user_id").Eq(*filter.UserID))
	}
	return ds.Order(goqu.I("b.id").Desc()).Prepared(true).ToSQL()
}

func buildGetQuery(id int64, forUpdate bool) (string, []any, error) {
	ds := selectBorrowings().Where(goqu.I("b.id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(goqu.Wait, goqu.T("b"))
	}
	return ds.Prepared(true).ToSQL()
}
