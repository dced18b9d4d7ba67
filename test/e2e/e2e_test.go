//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"audit-orchestrator/internal/common/camunda"
	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/common/database"
	"audit-orchestrator/internal/common/logger"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/observations"
	"audit-orchestrator/internal/orchestration/intent"
	"audit-orchestrator/internal/orchestration/registry"
	"audit-orchestrator/internal/orchestration/selector"
	"audit-orchestrator/internal/results"

	lao "audit-orchestrator/internal/workers/audit/log-audit-observation"
	paq "audit-orchestrator/internal/workers/audit/process-audit-query"
)

var (
	zeebe  *camunda.Client
	zapLog *zap.Logger
)

type logAuditObservationLoggerAdapter struct {
	logger.Logger
}

func (a *logAuditObservationLoggerAdapter) With(fields map[string]interface{}) lao.Logger {
	return &logAuditObservationLoggerAdapter{a.Logger.With(fields)}
}

func TestMain(m *testing.M) {
	zapLog, _ = zap.NewProduction()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	forceLocalhost(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	zeebe, err = camunda.NewClient(ctx, camunda.NewClientConfig(cfg))
	cancel()
	if err != nil {
		panic(fmt.Sprintf("connect to Zeebe: %v", err))
	}

	code := m.Run()

	zeebe.Close()
	os.Exit(code)
}

func forceLocalhost(cfg *config.Config) {
	cfg.Camunda.BrokerAddress = "localhost:26500"
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"
}

func loadConfig(t testing.TB) *config.Config {
	cfg, err := config.Load()
	require.NoError(t, err)
	forceLocalhost(cfg)
	return cfg
}

func TestFullE2E(t *testing.T) {
	cfg := loadConfig(t)

	assertAllServicesConnectivity(t, cfg)

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()
	db := dbClient.GetDB()

	createDatabaseTables(t, cfg, dbClient)
	deployAllBPMN(t)

	t.Run("observation-lifecycle", func(t *testing.T) { testObservationLifecycle(t, db) })
	t.Run("log-audit-observation", func(t *testing.T) { testLogAuditObservation(t, cfg, db) })
	t.Run("result-store", func(t *testing.T) { testResultStore(t, cfg, db) })
	t.Run("knowledge-indices", func(t *testing.T) { testKnowledgeIndices(t, cfg) })
}

func assertAllServicesConnectivity(t *testing.T, cfg *config.Config) {
	ctx := context.Background()

	db, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	assert.NoError(t, db.Ping(ctx), "PostgreSQL ping failed")
	db.Close()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	assert.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	rdb.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Database.Elasticsearch.GetURL()},
	})
	require.NoError(t, err, "Elasticsearch client creation failed")
	res, err := es.Info()
	require.NoError(t, err, "Elasticsearch info request failed")
	assert.False(t, res.IsError(), "Elasticsearch returned error")
	res.Body.Close()

	assert.NoError(t, zeebe.HealthCheck(ctx), "Zeebe topology request failed")
}

func createDatabaseTables(t *testing.T, cfg *config.Config, db *database.PostgresClient) {
	stmts := append([]string{}, observations.Schema...)

	store, err := results.NewStore(db.GetDB(), cfg.Results.Table)
	require.NoError(t, err)
	stmts = append(stmts, store.Schema()...)

	require.NoError(t, db.Migrate(context.Background(), stmts...))
}

func deployAllBPMN(t *testing.T) {
	var dir string
	for _, path := range []string{"bpmn", "../bpmn", "../../bpmn"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			dir = path
			break
		}
	}
	if dir == "" {
		t.Log("BPMN directory not found, skipping deployment")
		return
	}

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".bpmn") {
			continue
		}
		path := dir + "/" + f.Name()
		if _, err := zeebe.GetClient().NewDeployResourceCommand().AddResourceFile(path).Send(context.Background()); err != nil {
			t.Logf("failed to deploy %s: %v", f.Name(), err)
			continue
		}
		t.Logf("deployed %s", f.Name())
	}
}

func testObservationLifecycle(t *testing.T, db *sql.DB) {
	ctx := context.Background()
	store := observations.NewStore(db)
	company := "E2E Pharma " + uuid.NewString()[:8]
	due := time.Now().Add(-24 * time.Hour)

	obs, err := store.Create(ctx, observations.NewObservation{
		Company:   company,
		Area:      "Warehouse",
		Finding:   "Temperature excursions not trended",
		RiskLevel: "major",
		Evidence:  "Logger TL-4 export",
		DueDate:   &due,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RiskMajor, obs.RiskLevel)

	got, err := store.Get(ctx, obs.ID)
	require.NoError(t, err)
	assert.Equal(t, obs.Finding, got.Finding)

	overdue, err := store.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, containsObservation(overdue, obs.ID))

	require.NoError(t, store.AddCorrectiveAction(ctx, obs.ID, "Add monthly trending", nil))
	require.NoError(t, store.UpdateStatus(ctx, obs.ID, models.ObservationClosed))

	summary, err := store.Summary(ctx, company)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Zero(t, summary.Overdue)
}

func testLogAuditObservation(t *testing.T, cfg *config.Config, db *sql.DB) {
	h := lao.NewHandler(lao.NewConfig(cfg), observations.NewStore(db), nil,
		&logAuditObservationLoggerAdapter{logger.NewZapAdapter(zapLog)})

	output, err := h.Execute(context.Background(), &lao.Input{
		Company:   "E2E Pharma",
		Area:      "QC Laboratory",
		Finding:   "OOS results invalidated without root cause",
		RiskLevel: "Critical",
		Evidence:  "LIMS audit trail",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, output.ObservationID)
	assert.Equal(t, models.PriorityLabelCritical, output.PriorityLabel)
	assert.False(t, output.EmailSent)
}

func testResultStore(t *testing.T, cfg *config.Config, db *sql.DB) {
	ctx := context.Background()
	store, err := results.NewStore(db, cfg.Results.Table)
	require.NoError(t, err)

	result := &models.OrchestrationResult{
		RequestID:        uuid.NewString(),
		Query:            "What changed since last audit?",
		Intent:           models.IntentDeltaAnalysis,
		Response:         "No changes recorded.",
		InvolvedHandlers: []models.HandlerID{"quality_systems"},
		Timestamp:        time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Save(ctx, result))

	got, err := store.Get(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, result.Response, got.Response)
	assert.Equal(t, result.Intent, got.Intent)
}

func testKnowledgeIndices(t *testing.T, cfg *config.Config) {
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)

	reg := registry.Default()
	indices := make([]string, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		indices = append(indices, database.IndexName(cfg.Knowledge.IndexPrefix, d.Index))
	}

	missing, err := es.IndicesExist(context.Background(), indices)
	require.NoError(t, err)
	if len(missing) > 0 {
		t.Logf("knowledge indices not loaded yet: %v", missing)
	}
}

func containsObservation(list []*models.Observation, id string) bool {
	for _, o := range list {
		if o.ID == id {
			return true
		}
	}
	return false
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkRouting(b *testing.B) {
	classifier := intent.NewClassifier()
	sel := selector.NewSelector(registry.Default(), selector.DefaultSelectorConfig())
	query := "Prepare an audit agenda for the CDMO sterile filling line based on recent deviations"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sel.Select(query, classifier.Classify(query))
	}
}

func BenchmarkHandler_LogAuditObservation(b *testing.B) {
	cfg := loadConfig(b)
	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(b, err)
	defer dbClient.Close()

	h := lao.NewHandler(lao.NewConfig(cfg), observations.NewStore(dbClient.GetDB()), nil,
		&logAuditObservationLoggerAdapter{logger.NewNoOpLogger()})
	input := &lao.Input{
		Company:   "Bench Pharma",
		Area:      "Packaging",
		Finding:   "Line clearance not documented",
		RiskLevel: "Minor",
		Evidence:  "Batch record PK-1",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(context.Background(), input)
	}
}

func BenchmarkHandler_ProcessAuditQueryValidation(b *testing.B) {
	h := paq.NewHandler(&paq.Config{Timeout: time.Second}, nil, nil, &processAuditQueryLoggerAdapter{logger.NewNoOpLogger()})
	input := &paq.Input{Query: "   "}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(context.Background(), input)
	}
}

type processAuditQueryLoggerAdapter struct {
	logger.Logger
}

func (a *processAuditQueryLoggerAdapter) With(fields map[string]interface{}) paq.Logger {
	return &processAuditQueryLoggerAdapter{a.Logger.With(fields)}
}
