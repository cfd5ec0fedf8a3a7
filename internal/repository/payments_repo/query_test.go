package payments_repo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/domain"
	"library/internal/repository/payments_repo"
)

func Test_BuildListQuery_StatusAndUser(t *testing.T) {
	status := domain.PaymentStatusExpired
	userID := int64(3)

	query, args, err := payments_repo.BuildListQuery(domain.PaymentFilter{Status: &status, UserID: &userID})

	require.NoError(t, err)
	assert.Contains(t, query, `INNER JOIN "borrowings" AS "b" ON ("b"."id" = "p"."borrowing_id")`)
	assert.Contains(t, query, `"p"."payment_status" = $1`)
	assert.Contains(t, query, `"b"."user_id" = $2`)
	assert.Equal(t, []any{"EXPIRED", int64(3)}, args)
}

func Test_BuildListQuery_Unfiltered(t *testing.T) {
	query, args, err := payments_repo.BuildListQuery(domain.PaymentFilter{})

	require.NoError(t, err)
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}
