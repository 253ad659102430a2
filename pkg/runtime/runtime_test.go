package runtime

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanlin8901/special-happiness/pkg/agent"
	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/tools"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
}

func (l *scriptedLLM) Generate(_ context.Context, _ llms.Request) (llms.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.replies) == 0 {
		return llms.Response{Text: "Final Answer: nothing left"}, nil
	}
	r := l.replies[0]
	l.replies = l.replies[1:]
	return llms.Response{Text: r}, nil
}

func (l *scriptedLLM) Model() string { return "scripted" }

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := []float32{1, 0, 0, 0}
	for i, b := range []byte(text) {
		v[i%4] += float32(b % 5)
	}
	return v, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return 4 }

func (hashEmbedder) Model() string { return "hash" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		VectorStore: vector.ProviderConfig{Type: vector.ProviderChromem},
		Ingest: config.IngestConfig{
			SourceDir:  t.TempDir(),
			Extensions: []string{".txt"},
			ChunkSize:  200,
		},
	}
	cfg.Agent.Shortcut.Disabled = true
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func withSQLite(t *testing.T, cfg *config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lab.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Instruments (ID INTEGER PRIMARY KEY, Name TEXT, Room TEXT);
		INSERT INTO Instruments (Name, Room) VALUES ('Confocal microscope', 'B12'), ('Mass spectrometer', 'C03');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg.Database = &config.DatabaseConfig{Driver: config.DriverSQLite, Database: path}
	cfg.Database.SetDefaults()
}

func newTestRuntime(t *testing.T, cfg *config.Config, llm llms.LLM, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{
		WithLLMFactory(func(config.LLMConfig, *observability.Metrics) (llms.LLM, error) { return llm, nil }),
		WithEmbedderFactory(func(config.EmbedderConfig) (embedder.Embedder, error) { return hashEmbedder{}, nil }),
	}, opts...)
	rt, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_WithoutDatabase(t *testing.T) {
	rt := newTestRuntime(t, testConfig(t), &scriptedLLM{})

	assert.Nil(t, rt.DB())
	assert.Equal(t, []string{tools.NamePaperSearch, tools.NameSQLSearch, tools.NameLLMAnswer}, rt.Tools().Names())
	assert.Equal(t, "chromem", rt.Store().Name())
	assert.NotNil(t, rt.Agent())
	assert.Nil(t, rt.Metrics())
}

func TestNew_WithDatabase(t *testing.T) {
	cfg := testConfig(t)
	withSQLite(t, cfg)

	rt := newTestRuntime(t, cfg, &scriptedLLM{})

	require.NotNil(t, rt.DB())
	names := rt.Tools().Names()
	assert.Contains(t, names, tools.NameSQLSchema)
	assert.Contains(t, names, tools.NameSQLQuery)
	assert.Contains(t, rt.Agent().SystemPrompt(), "SQLQuery returns SQL_ERROR")
}

func TestNew_UnreachableDatabaseDisablesSQLTools(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = &config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "missing", "dir", "lab.db"),
	}
	cfg.Database.SetDefaults()

	rt := newTestRuntime(t, cfg, &scriptedLLM{})

	assert.Nil(t, rt.DB())
	assert.NotContains(t, rt.Tools().Names(), tools.NameSQLQuery)
}

func TestNew_WithoutDatabaseOption(t *testing.T) {
	cfg := testConfig(t)
	withSQLite(t, cfg)

	rt := newTestRuntime(t, cfg, &scriptedLLM{}, WithoutDatabase())
	assert.Nil(t, rt.DB())
}

func TestNew_FactoryErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{
			name: "llm",
			opt:  WithLLMFactory(func(config.LLMConfig, *observability.Metrics) (llms.LLM, error) { return nil, boom }),
			want: "failed to create LLM",
		},
		{
			name: "embedder",
			opt:  WithEmbedderFactory(func(config.EmbedderConfig) (embedder.Embedder, error) { return nil, boom }),
			want: "failed to create embedder",
		},
		{
			name: "store",
			opt:  WithStoreFactory(func(*vector.ProviderConfig) (vector.Provider, error) { return nil, boom }),
			want: "failed to create vector store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), testConfig(t),
				WithLLMFactory(func(config.LLMConfig, *observability.Metrics) (llms.LLM, error) { return &scriptedLLM{}, nil }),
				WithEmbedderFactory(func(config.EmbedderConfig) (embedder.Embedder, error) { return hashEmbedder{}, nil }),
				tt.opt,
			)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRuntime_IngestDocumentsAndAsk(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Ingest.SourceDir, "attention.txt"),
		[]byte("Graph attention networks weigh neighbour features with learned attention coefficients."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Ingest.SourceDir, "ignored.csv"), []byte("a,b"), 0o644))

	llm := &scriptedLLM{replies: []string{
		"Thought: search the papers\nAction: LabPaperSearch\nAction Input: graph attention",
		"Thought: found it\nFinal Answer: attention.txt covers graph attention.",
	}}
	rt := newTestRuntime(t, cfg, llm)

	n, err := rt.IngestDocuments(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := rt.Store().Count(context.Background(), cfg.Collections.Papers)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	res, err := rt.Agent().Run(context.Background(), "Which paper covers graph attention?")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusDone, res.Status)
	assert.Equal(t, "attention.txt covers graph attention.", res.Answer)

	var observation string
	for _, turn := range res.Transcript.Turns {
		if turn.Kind == agent.TurnObservation {
			observation = turn.Text
		}
	}
	assert.True(t, strings.HasPrefix(observation, "[1] attention.txt: "), observation)
}

func TestRuntime_IngestSQL(t *testing.T) {
	cfg := testConfig(t)
	withSQLite(t, cfg)
	rt := newTestRuntime(t, cfg, &scriptedLLM{})

	n, err := rt.IngestSQL(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := rt.Store().Count(context.Background(), cfg.Collections.SQL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRuntime_IngestSQLWithoutDatabase(t *testing.T) {
	rt := newTestRuntime(t, testConfig(t), &scriptedLLM{})

	_, err := rt.IngestSQL(context.Background(), false)
	assert.Error(t, err)
}

func TestRuntime_HTTPServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observability.Metrics.Enabled = true
	rt := newTestRuntime(t, cfg, &scriptedLLM{replies: []string{"Final Answer: hi"}})
	require.NotNil(t, rt.Metrics())

	ts := httptest.NewServer(rt.HTTPServer().Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"prompt":"hello?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(ts.URL + cfg.Observability.Metrics.Endpoint)
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
