package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"travelgo-chat/internal/common/config"
	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/observability"
	"travelgo-chat/internal/models"
	generatereply "travelgo-chat/internal/workers/chat/generate-reply"
	resolvefallback "travelgo-chat/internal/workers/chat/resolve-fallback"
	"travelgo-chat/pkg/registry"
)

type fakeExecutor struct {
	mu     sync.Mutex
	rows   map[string][]models.Row
	errs   map[string]error
	called []models.QueryPlan
}

func (f *fakeExecutor) ExecutePlan(ctx context.Context, plan models.QueryPlan) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, plan)
	if err := f.errs[plan.Table]; err != nil {
		return nil, err
	}
	return f.rows[plan.Table], nil
}

func (f *fakeExecutor) plans() []models.QueryPlan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.QueryPlan(nil), f.called...)
}

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []generatereply.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req generatereply.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

var (
	anonymous = models.Anonymous()
	alice     = models.CallerIdentity{Authenticated: true, Email: "alice@example.com"}
)

func fixedClock() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func newTestService(t *testing.T, exec *fakeExecutor, gen *fakeGenerator) *Service {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	stages, err := NewStages(StageOptions{
		Chat:      config.ChatConfig{PageSize: 10, QueryTimeout: 500},
		Registry:  reg,
		Executor:  exec,
		Generator: gen,
		Clock:     fixedClock,
		Logger:    logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return NewService(stages, nil, logger.NewTestLogger(t))
}

func promoRows() []models.Row {
	return []models.Row{
		{"id": int64(7), "name": "Flash Sale", "promo_code": "FLASH7", "discount_type": "percent", "discount_value": 20.0, "is_active": true},
		{"id": int64(4), "name": "Early Bird", "promo_code": "EARLY15", "discount_type": "percent", "discount_value": 15.0, "is_active": true},
	}
}

func TestService_Handle_DatabaseFirst(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{"promos": promoRows()}}
	gen := &fakeGenerator{reply: "Ada dua promo aktif: FLASH7 dan EARLY15."}
	svc := newTestService(t, exec, gen)

	resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "  promo hari ini  "}, anonymous)
	require.NoError(t, err)

	assert.Equal(t, models.TierDatabaseFirst, resp.Tier)
	assert.Equal(t, gen.reply, resp.Reply)
	assert.Equal(t, []string{"promos.active.today"}, resp.UsedContextKeys)
	require.Len(t, resp.RelatedPromos, 2)
	assert.Equal(t, "FLASH7", resp.RelatedPromos[0].PromoCode)
	assert.Equal(t, []string{"Gunakan kode FLASH7", "Gunakan kode EARLY15"}, resp.SuggestedActions)
	require.Len(t, resp.GeneratedQueries, 1)
	assert.Contains(t, resp.GeneratedQueries[0], `FROM "promos"`)
	assert.True(t, strings.HasPrefix(resp.Summary, "Permintaan: promo hari ini"))

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, "promo hari ini", req.Message)
	require.NotNil(t, req.Bundle)
	assert.Len(t, req.Bundle.Promos, 2)
}

func TestService_Handle_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		message string
		caller  models.CallerIdentity
		tier    models.ResponseTier
		reply   string
	}{
		{"sensitive", "Apa password admin?", alice, models.TierForbiddenRefused, resolvefallback.ReplyForbidden},
		{"private while anonymous", "booking saya", anonymous, models.TierForbiddenRefused, resolvefallback.ReplyLoginRequired},
		{"booking code while anonymous", "status BK12345 gimana?", anonymous, models.TierForbiddenRefused, resolvefallback.ReplyLoginRequired},
		{"off topic", "Harga saham hari ini?", anonymous, models.TierOffTopicRefused, resolvefallback.ReplyOffTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{rows: map[string][]models.Row{"promos": promoRows()}}
			gen := &fakeGenerator{reply: "should not be used"}
			svc := newTestService(t, exec, gen)

			resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: tt.message}, tt.caller)
			require.NoError(t, err)

			assert.Equal(t, tt.tier, resp.Tier)
			assert.Equal(t, tt.reply, resp.Reply)
			assert.Empty(t, resp.UsedContextKeys)
			assert.Empty(t, resp.GeneratedQueries)
			assert.Empty(t, resp.RelatedPromos)
			assert.Empty(t, exec.plans())
			assert.Empty(t, gen.requests)
		})
	}
}

func TestService_Handle_Fallbacks(t *testing.T) {
	t.Run("domain specific without rows is thematic", func(t *testing.T) {
		exec := &fakeExecutor{}
		gen := &fakeGenerator{reply: "Eropa punya banyak pilihan destinasi."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "Trip apa yang bagus untuk saya ke Eropa"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierThematicFallback, resp.Tier)
		assert.Empty(t, resp.UsedContextKeys)
		assert.Empty(t, resp.RelatedTrips)
		assert.NotEmpty(t, resp.GeneratedQueries)

		require.Len(t, gen.requests, 1)
		assert.Nil(t, gen.requests[0].Bundle)
		assert.Contains(t, gen.requests[0].Instructions, "Jangan mengarang ID")
	})

	t.Run("general travel", func(t *testing.T) {
		exec := &fakeExecutor{}
		gen := &fakeGenerator{reply: "Bawa tabir surya dan pakaian ringan."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "tips packing untuk liburan ke pantai"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierGeneralFallback, resp.Tier)
		assert.Equal(t, gen.reply, resp.Reply)
		require.Len(t, gen.requests, 1)
		assert.Nil(t, gen.requests[0].Bundle)
	})
}

func TestService_Handle_BookingsBoundToCaller(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{
		"bookings": {{"id": int64(11), "booking_code": "BK12345", "trip_id": int64(3), "status": "confirmed"}},
	}}
	gen := &fakeGenerator{reply: "Booking BK12345 sudah terkonfirmasi."}
	svc := newTestService(t, exec, gen)

	resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "status BK12345 gimana?"}, alice)
	require.NoError(t, err)

	assert.Equal(t, models.TierDatabaseFirst, resp.Tier)
	assert.Equal(t, []string{"bookings.by_code"}, resp.UsedContextKeys)
	require.Len(t, resp.UserBookings, 1)
	assert.Contains(t, resp.SuggestedActions, "Lihat detail booking terakhir Anda")

	plans := exec.plans()
	require.Len(t, plans, 1)
	assert.True(t, plans[0].HasIdentityPredicate("customer_email"))
	for _, p := range plans[0].Predicates {
		if p.Column == "customer_email" {
			assert.Equal(t, "alice@example.com", p.Param.Value)
		}
	}
	for _, q := range resp.GeneratedQueries {
		assert.NotContains(t, q, "alice@example.com")
		assert.NotContains(t, q, "BK12345")
	}
}

func TestService_Handle_PartialFailure(t *testing.T) {
	exec := &fakeExecutor{
		rows: map[string][]models.Row{"trips": {{"id": int64(1), "name": "Bromo Sunrise", "status": "published"}}},
		errs: map[string]error{"trip_schedules": apperrors.NewQueryTimeoutError("trip_schedules.upcoming")},
	}
	gen := &fakeGenerator{reply: "Trip Bromo Sunrise tersedia."}
	svc := newTestService(t, exec, gen)

	resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "jadwal keberangkatan trip bromo"}, anonymous)
	require.NoError(t, err)

	assert.Equal(t, models.TierDatabaseFirst, resp.Tier)
	assert.Equal(t, []string{"trips.search"}, resp.UsedContextKeys)
	assert.Len(t, resp.RelatedTrips, 1)
	assert.Len(t, resp.GeneratedQueries, 2)
}

func TestService_Handle_TripDetails(t *testing.T) {
	t.Run("details bound to matched trips", func(t *testing.T) {
		exec := &fakeExecutor{rows: map[string][]models.Row{
			"trips":           {{"id": int64(1), "name": "Bromo Sunrise", "status": "published", "is_active": true}},
			"trip_schedules":  {{"id": int64(10), "trip_id": int64(1), "departure_date": "2025-04-02"}},
			"trip_facilities": {{"id": int64(20), "trip_id": int64(1), "name": "Jeep", "type": "transport"}},
		}}
		gen := &fakeGenerator{reply: "Bromo Sunrise berangkat 2 April, termasuk jeep."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "jadwal dan fasilitas trip bromo"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierDatabaseFirst, resp.Tier)
		assert.Equal(t, []string{"trip_facilities.by_trip", "trip_schedules.upcoming", "trips.search"}, resp.UsedContextKeys)
		assert.Len(t, resp.RelatedCollections["trip_schedules"], 1)
		assert.Len(t, resp.RelatedCollections["trip_facilities"], 1)

		for _, plan := range exec.plans() {
			if plan.DependsOn == "" {
				continue
			}
			ids, ok := predicateValue(plan, "trip_id")
			require.True(t, ok, plan.Key)
			assert.Equal(t, []int64{1}, ids, plan.Key)
		}
	})

	t.Run("no matching trip reads no schedules", func(t *testing.T) {
		exec := &fakeExecutor{rows: map[string][]models.Row{
			"trip_schedules": {{"id": int64(10), "trip_id": int64(99), "departure_date": "2025-04-02"}},
		}}
		gen := &fakeGenerator{reply: "Belum ada jadwal."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "jadwal trip bromo"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierThematicFallback, resp.Tier)
		require.Len(t, exec.plans(), 1)
		assert.Equal(t, "trips", exec.plans()[0].Table)
		assert.Empty(t, resp.RelatedCollections["trip_schedules"])
	})
}

func TestService_Handle_ArticleTopic(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{
		"blogs": {{"id": int64(3), "title": "Seminggu di Bali", "slug": "seminggu-di-bali"}},
	}}
	gen := &fakeGenerator{reply: "Coba baca Seminggu di Bali."}
	svc := newTestService(t, exec, gen)

	resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "artikel tentang bali"}, anonymous)
	require.NoError(t, err)

	assert.NotEqual(t, models.TierOffTopicRefused, resp.Tier)
	require.Len(t, exec.plans(), 1)
	assert.Equal(t, "blogs.match", exec.plans()[0].Key)
	require.NotNil(t, exec.plans()[0].Keyword)
	assert.Equal(t, "bali", exec.plans()[0].Keyword.Terms[0].Value)
}

func predicateValue(plan models.QueryPlan, column string) (interface{}, bool) {
	for _, p := range plan.Predicates {
		if p.Column == column {
			return p.Param.Value, true
		}
	}
	return nil, false
}

func TestService_Handle_AllPlansFailed(t *testing.T) {
	exec := &fakeExecutor{errs: map[string]error{"promos": apperrors.NewDatabaseUnavailableError(errors.New("connection refused"))}}
	gen := &fakeGenerator{reply: "unused"}
	svc := newTestService(t, exec, gen)

	_, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo bulan ini"}, anonymous)
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDataUnavailable, stdErr.Code)
	assert.Equal(t, 503, apperrors.HTTPStatus(stdErr.Code))
	assert.Empty(t, gen.requests)
}

func TestService_Handle_SoftFailuresFallBack(t *testing.T) {
	t.Run("optional articles time out", func(t *testing.T) {
		exec := &fakeExecutor{errs: map[string]error{"blogs": apperrors.NewQueryTimeoutError("blogs.match")}}
		gen := &fakeGenerator{reply: "Lombok punya banyak pantai cantik."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "tips liburan ke pantai lombok"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierGeneralFallback, resp.Tier)
		assert.Equal(t, gen.reply, resp.Reply)
		require.Len(t, exec.plans(), 1)
		assert.Equal(t, "blogs", exec.plans()[0].Table)
		assert.Len(t, gen.requests, 1)
	})

	t.Run("catalog query times out", func(t *testing.T) {
		exec := &fakeExecutor{errs: map[string]error{"promos": apperrors.NewQueryTimeoutError("promos.active.this_month")}}
		gen := &fakeGenerator{reply: "Promo biasanya muncul menjelang musim liburan."}
		svc := newTestService(t, exec, gen)

		resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo bulan ini"}, anonymous)
		require.NoError(t, err)

		assert.Equal(t, models.TierThematicFallback, resp.Tier)
		assert.Empty(t, resp.RelatedPromos)
		require.Len(t, gen.requests, 1)
		assert.Nil(t, gen.requests[0].Bundle)
	})
}

func TestService_Handle_GenerationFailure(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{"promos": promoRows()}}
	gen := &fakeGenerator{err: apperrors.NewGenerationTimeoutError(15 * time.Second)}
	svc := newTestService(t, exec, gen)

	resp, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo hari ini"}, anonymous)
	require.NoError(t, err)

	assert.Equal(t, models.TierDatabaseFirst, resp.Tier)
	assert.Equal(t, ApologyReply, resp.Reply)
	assert.Len(t, resp.RelatedPromos, 2)
}

func TestService_Handle_TracesStages(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	obs := observability.New("travelgo-chat-test", rec)
	t.Cleanup(obs.Shutdown)

	exec := &fakeExecutor{rows: map[string][]models.Row{"promos": promoRows()}}
	gen := &fakeGenerator{err: apperrors.NewGenerationTimeoutError(15 * time.Second)}
	base := newTestService(t, exec, gen)
	svc := NewService(base.stages, obs, logger.NewTestLogger(t))

	_, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo hari ini"}, anonymous)
	require.NoError(t, err)

	names := []string{}
	for _, span := range rec.Ended() {
		names = append(names, span.Name())
		if span.Name() == "chat.generate" {
			assert.Equal(t, codes.Error, span.Status().Code)
		}
	}
	assert.Equal(t, []string{"chat.classify", "chat.build", "chat.assemble", "chat.generate", "chat.handle"}, names)
}

func TestService_Handle_InvalidRequest(t *testing.T) {
	svc := newTestService(t, &fakeExecutor{}, &fakeGenerator{})

	_, err := svc.Handle(context.Background(), models.ChatRequest{Message: " \n\t "}, anonymous)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
}

func TestService_Handle_Deterministic(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{"promos": promoRows()}}
	gen := &fakeGenerator{reply: "Ada promo."}
	svc := newTestService(t, exec, gen)

	first, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo bulan ini"}, anonymous)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Handle(context.Background(), models.ChatRequest{Message: "promo bulan ini"}, anonymous)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

type stubIdentities struct {
	caller models.CallerIdentity
	err    error
	tokens []string
}

func (s *stubIdentities) Resolve(ctx context.Context, token string) (models.CallerIdentity, error) {
	s.tokens = append(s.tokens, token)
	return s.caller, s.err
}

func TestService_ExecuteJob(t *testing.T) {
	exec := &fakeExecutor{rows: map[string][]models.Row{
		"bookings": {{"id": int64(11), "booking_code": "BK12345"}},
	}}
	svc := newTestService(t, exec, &fakeGenerator{reply: "Ini booking Anda."})

	t.Run("resolves token", func(t *testing.T) {
		ids := &stubIdentities{caller: alice}
		input, err := ParseJobInput(`{"message":"booking saya","accessToken":"tok-1"}`)
		require.NoError(t, err)

		out, err := svc.ExecuteJob(context.Background(), ids, input)
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-1"}, ids.tokens)
		assert.Equal(t, models.TierDatabaseFirst, out.Response.Tier)
		assert.Equal(t, []string{"bookings.mine"}, out.Response.UsedContextKeys)
	})

	t.Run("auth failure", func(t *testing.T) {
		ids := &stubIdentities{err: apperrors.NewAuthenticationError("token has been revoked")}
		_, err := svc.ExecuteJob(context.Background(), ids, &JobInput{Message: "booking saya", AccessToken: "tok-2"})
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
	})

	t.Run("bad variables", func(t *testing.T) {
		_, err := ParseJobInput(`{"message":`)
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
	})

	t.Run("nil input", func(t *testing.T) {
		_, err := svc.ExecuteJob(context.Background(), &stubIdentities{}, nil)
		assert.Error(t, err)
	})
}

func TestNewStages_RequiresCollaborators(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	log := logger.NewTestLogger(t)

	_, err = NewStages(StageOptions{Executor: &fakeExecutor{}, Generator: &fakeGenerator{}, Logger: log})
	assert.Error(t, err)
	_, err = NewStages(StageOptions{Registry: reg, Generator: &fakeGenerator{}, Logger: log})
	assert.Error(t, err)
	_, err = NewStages(StageOptions{Registry: reg, Executor: &fakeExecutor{}, Logger: log})
	assert.Error(t, err)
}
