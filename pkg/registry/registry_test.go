package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/models"
)

const testSchema = `
version: 2
max_limit: 20
tables:
  notes:
    primary_key: id
    sensitivity: public
    columns: [id, body]
  comments:
    primary_key: id
    sensitivity: public
    columns: [id, note_id, body]
  orders:
    primary_key: id
    sensitivity: private
    owner_column: owner
    columns: [id, owner, total]
`

func TestDefault_LoadsEmbeddedSchema(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"blogs", "bookings", "promos", "reviews", "trip_facilities",
		"trip_itineraries", "trip_schedules", "trips",
	}, reg.Tables())

	bookings, ok := reg.Table("bookings")
	require.True(t, ok)
	assert.True(t, bookings.IsPrivate())
	assert.Equal(t, "customer_email", bookings.OwnerColumn)
	assert.False(t, bookings.HasColumn("customer_phone"))

	trips, ok := reg.Table("trips")
	require.True(t, ok)
	assert.False(t, trips.IsPrivate())
	assert.Equal(t, "id", trips.PrimaryKey)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		errMsg string
	}{
		{
			name:   "no tables",
			schema: "version: 1\n",
			errMsg: "declares no tables",
		},
		{
			name: "private without owner",
			schema: `
tables:
  orders:
    primary_key: id
    sensitivity: private
    columns: [id]
`,
			errMsg: "need owner_column",
		},
		{
			name: "owner column not listed",
			schema: `
tables:
  orders:
    primary_key: id
    sensitivity: private
    owner_column: owner
    columns: [id]
`,
			errMsg: "owner_column",
		},
		{
			name: "primary key not listed",
			schema: `
tables:
  notes:
    primary_key: uuid
    sensitivity: public
    columns: [id]
`,
			errMsg: "primary_key",
		},
		{
			name: "unknown sensitivity",
			schema: `
tables:
  notes:
    primary_key: id
    sensitivity: forbidden
    columns: [id]
`,
			errMsg: "unsupported sensitivity",
		},
		{
			name:   "malformed yaml",
			schema: "tables: [",
			errMsg: "parsing schema registry YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.schema))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidatePlan(t *testing.T) {
	reg, err := Parse([]byte(testSchema))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Version())
	assert.Equal(t, 20, reg.MaxLimit())

	valid := models.QueryPlan{
		Key:     "orders.mine",
		Table:   "orders",
		Columns: []string{"id", "total"},
		Predicates: []models.Predicate{
			{Column: "owner", Operator: models.OpEq, Param: models.Identity("a@example.com")},
		},
		OrderBy: []models.OrderBy{{Column: "id", Desc: true}},
		Limit:   10,
	}
	require.NoError(t, reg.ValidatePlan(valid))

	tests := []struct {
		name   string
		mutate func(p *models.QueryPlan)
	}{
		{"missing key", func(p *models.QueryPlan) { p.Key = "" }},
		{"unknown table", func(p *models.QueryPlan) { p.Table = "users" }},
		{"no columns", func(p *models.QueryPlan) { p.Columns = nil }},
		{"unknown column", func(p *models.QueryPlan) { p.Columns = append(p.Columns, "password") }},
		{"unknown operator", func(p *models.QueryPlan) { p.Predicates[0].Operator = "like" }},
		{"unknown order column", func(p *models.QueryPlan) { p.OrderBy[0].Column = "created_at" }},
		{"limit zero", func(p *models.QueryPlan) { p.Limit = 0 }},
		{"limit above max", func(p *models.QueryPlan) { p.Limit = 21 }},
		{"owner from message text", func(p *models.QueryPlan) { p.Predicates[0].Param = models.UserSlot("a@example.com") }},
		{"owner predicate empty", func(p *models.QueryPlan) { p.Predicates[0].Param = models.Identity("") }},
		{"owner predicate dropped", func(p *models.QueryPlan) { p.Predicates = nil }},
		{"keyword on unknown column", func(p *models.QueryPlan) {
			p.Keyword = &models.KeywordFilter{Columns: []string{"secret"}, Terms: []models.Param{models.UserSlot("x")}}
		}},
		{"keyword without terms", func(p *models.QueryPlan) {
			p.Keyword = &models.KeywordFilter{Columns: []string{"total"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := valid
			plan.Columns = append([]string(nil), valid.Columns...)
			plan.Predicates = append([]models.Predicate(nil), valid.Predicates...)
			plan.OrderBy = append([]models.OrderBy(nil), valid.OrderBy...)
			tt.mutate(&plan)

			err := reg.ValidatePlan(plan)
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeSchemaViolation, stdErr.Code)
		})
	}
}

func TestValidatePlan_IdentityOnPublicTable(t *testing.T) {
	reg, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	plan := models.QueryPlan{
		Key:     "notes.x",
		Table:   "notes",
		Columns: []string{"id"},
		Predicates: []models.Predicate{
			{Column: "body", Operator: models.OpEq, Param: models.Identity("a@example.com")},
		},
		Limit: 1,
	}
	assert.Error(t, reg.ValidatePlan(plan))
}

func TestValidatePlan_DependentPlans(t *testing.T) {
	reg, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	valid := models.QueryPlan{
		Key:       "comments.by_note",
		Table:     "comments",
		DependsOn: "notes.recent",
		Columns:   []string{"id", "body"},
		Predicates: []models.Predicate{
			{Column: "note_id", Operator: models.OpIn, Param: models.FromPlan()},
		},
		Limit: 5,
	}
	require.NoError(t, reg.ValidatePlan(valid))

	tests := []struct {
		name   string
		mutate func(p *models.QueryPlan)
	}{
		{"no parent", func(p *models.QueryPlan) { p.DependsOn = "" }},
		{"own parent", func(p *models.QueryPlan) { p.DependsOn = p.Key }},
		{"in with literal", func(p *models.QueryPlan) { p.Predicates[0].Param = models.Literal([]int64{1, 2}) }},
		{"parent rows with eq", func(p *models.QueryPlan) { p.Predicates[0].Operator = models.OpEq }},
		{"unknown column", func(p *models.QueryPlan) { p.Predicates[0].Column = "owner" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := valid
			plan.Predicates = append([]models.Predicate(nil), valid.Predicates...)
			tt.mutate(&plan)

			err := reg.ValidatePlan(plan)
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeSchemaViolation, stdErr.Code)
		})
	}
}
