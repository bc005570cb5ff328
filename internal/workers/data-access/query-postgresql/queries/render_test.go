package queries

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelgo-chat/internal/models"
)

func TestRender(t *testing.T) {
	now := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		plan models.QueryPlan
		sql  string
		args []interface{}
	}{
		{
			name: "promos with nulls last ordering",
			plan: models.QueryPlan{
				Key:     "promos.active.today",
				Table:   "promos",
				Columns: []string{"id", "promo_code"},
				Predicates: []models.Predicate{
					{Column: "is_active", Operator: models.OpEq, Param: models.Literal(true)},
					{Column: "start_date", Operator: models.OpLte, Param: models.Clock(now)},
					{Column: "end_date", Operator: models.OpGte, Param: models.Clock(now)},
				},
				OrderBy: []models.OrderBy{{Column: "discount_value", Desc: true, NullsLast: true}},
				Limit:   10,
			},
			sql:  `SELECT "id", "promo_code" FROM "promos" WHERE "is_active" = $1 AND "start_date" <= $2 AND "end_date" >= $3 ORDER BY "discount_value" DESC NULLS LAST LIMIT 10`,
			args: []interface{}{true, now, now},
		},
		{
			name: "keyword filter reuses one placeholder per term",
			plan: models.QueryPlan{
				Key:     "trips.search",
				Table:   "trips",
				Columns: []string{"id"},
				Predicates: []models.Predicate{
					{Column: "status", Operator: models.OpEq, Param: models.Literal("published")},
				},
				Keyword: &models.KeywordFilter{
					Columns: []string{"name", "location"},
					Terms:   []models.Param{models.UserSlot("bali"), models.UserSlot("50%_off")},
				},
				OrderBy: []models.OrderBy{{Column: "id", Desc: true}},
				Limit:   10,
			},
			sql:  `SELECT "id" FROM "trips" WHERE "status" = $1 AND ("name" ILIKE $2 OR "location" ILIKE $2 OR "name" ILIKE $3 OR "location" ILIKE $3) ORDER BY "id" DESC LIMIT 10`,
			args: []interface{}{"published", "%bali%", `%50\%\_off%`},
		},
		{
			name: "no predicates ascending order",
			plan: models.QueryPlan{
				Key:     "trip_schedules.upcoming",
				Table:   "trip_schedules",
				Columns: []string{"id", "departure_date"},
				OrderBy: []models.OrderBy{{Column: "departure_date"}},
				Limit:   5,
			},
			sql: `SELECT "id", "departure_date" FROM "trip_schedules" ORDER BY "departure_date" ASC LIMIT 5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Render(tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, stmt.SQL)
			assert.Equal(t, tt.args, stmt.Args)
		})
	}
}

func TestRender_UserTextNeverInSQL(t *testing.T) {
	hostile := `x'; DROP TABLE bookings; --`
	plan := models.QueryPlan{
		Key:     "bookings.by_code",
		Table:   "bookings",
		Columns: []string{"id"},
		Predicates: []models.Predicate{
			{Column: "customer_email", Operator: models.OpEq, Param: models.Identity("a@example.com")},
			{Column: "booking_code", Operator: models.OpEq, Param: models.UserSlot(hostile)},
		},
		Limit: 1,
	}

	stmt, err := Render(plan)
	require.NoError(t, err)
	assert.NotContains(t, stmt.SQL, "DROP")
	assert.NotContains(t, stmt.SQL, "a@example.com")
	assert.Equal(t, []interface{}{"a@example.com", hostile}, stmt.Args)
}

func TestRender_OwnerComparedCaseInsensitively(t *testing.T) {
	plan := models.QueryPlan{
		Key:     "bookings.mine",
		Table:   "bookings",
		Columns: []string{"id"},
		Predicates: []models.Predicate{
			{Column: "customer_email", Operator: models.OpEq, Param: models.Identity("Alice@Example.COM")},
			{Column: "status", Operator: models.OpEq, Param: models.Literal("Confirmed")},
		},
		Limit: 10,
	}

	stmt, err := Render(plan)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "bookings" WHERE lower("customer_email") = $1 AND "status" = $2 LIMIT 10`, stmt.SQL)
	assert.Equal(t, []interface{}{"alice@example.com", "Confirmed"}, stmt.Args)
}

func TestRender_ParentRows(t *testing.T) {
	plan := models.QueryPlan{
		Key:       "trip_schedules.upcoming",
		Table:     "trip_schedules",
		DependsOn: "trips.search",
		Columns:   []string{"id", "trip_id"},
		Predicates: []models.Predicate{
			{Column: "trip_id", Operator: models.OpIn, Param: models.FromPlan()},
			{Column: "departure_date", Operator: models.OpGte, Param: models.Clock("2025-03-14")},
		},
		OrderBy: []models.OrderBy{{Column: "departure_date"}},
		Limit:   5,
	}
	const sql = `SELECT "id", "trip_id" FROM "trip_schedules" WHERE "trip_id" = ANY($1) AND "departure_date" >= $2 ORDER BY "departure_date" ASC LIMIT 5`

	t.Run("integer keys", func(t *testing.T) {
		stmt, err := Render(plan.BindParent([]int64{3, 1}))
		require.NoError(t, err)
		assert.Equal(t, sql, stmt.SQL)
		assert.Equal(t, []interface{}{pq.Int64Array{3, 1}, "2025-03-14"}, stmt.Args)
	})

	t.Run("string keys", func(t *testing.T) {
		stmt, err := Render(plan.BindParent([]string{"a-1"}))
		require.NoError(t, err)
		assert.Equal(t, pq.StringArray{"a-1"}, stmt.Args[0])
	})

	t.Run("unbound renders for explain", func(t *testing.T) {
		stmt, err := Render(plan)
		require.NoError(t, err)
		assert.Equal(t, sql, stmt.SQL)
	})

	t.Run("other values rejected", func(t *testing.T) {
		_, err := Render(plan.BindParent([]float64{1}))
		assert.ErrorIs(t, err, ErrUnboundParent)
	})
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(models.QueryPlan{Key: "x", Table: "trips", Limit: 1})
	assert.ErrorIs(t, err, ErrEmptyPlan)

	_, err = Render(models.QueryPlan{
		Key:        "x",
		Table:      "trips",
		Columns:    []string{"id"},
		Predicates: []models.Predicate{{Column: "id", Operator: "like", Param: models.Literal(1)}},
		Limit:      1,
	})
	assert.ErrorIs(t, err, ErrUnknownOperator)
}
