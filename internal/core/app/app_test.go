package app

import (
	"apimatch/internal/core/config"
	"apimatch/internal/core/errors"
	"apimatch/internal/core/ports"
	"apimatch/internal/data/history"
	"apimatch/internal/engine/catalog"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T) *catalog.KnowledgeGraph {
	t.Helper()
	g, err := catalog.Build(&catalog.Manifest{
		Version: catalog.ManifestVersion,
		Classes: map[string]catalog.ClassEntry{
			"HybridShapeFactory": {
				FullPath: "api.hybrid_shape_interfaces.HybridShapeFactory",
				Methods: map[string]string{
					"add_new_plane_offset": "HybridShapeFactory.add_new_plane_offset(plane, offset, reverse)",
					"add_new_point_coord":  "HybridShapeFactory.add_new_point_coord(x, y, z)",
					"add_new_spline":       "HybridShapeFactory.add_new_spline()",
				},
				MethodDetails: map[string]catalog.MethodDetail{
					"add_new_plane_offset": {Purpose: "Create a new offset plane from a reference plane", ReturnType: "HybridShapePlaneOffset"},
					"add_new_point_coord":  {Purpose: "Create a new point from coordinates"},
					"add_new_spline":       {Purpose: "Create a new spline curve through points"},
				},
			},
			"Document": {
				FullPath: "api.documents.Document",
				Methods: map[string]string{
					"save":  "Document.save()",
					"close": "Document.close()",
				},
			},
		},
	})
	require.NoError(t, err)
	return g
}

type memoryHistory struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memoryHistory) SaveRun(run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryHistory) LoadRuns(limit int) ([]history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Run(nil), m.runs...), nil
}

func newTestService(t *testing.T, store ports.HistoryStore) *Service {
	t.Helper()
	svc, err := NewWithDependencies(config.Default(), testGraph(t), Dependencies{History: store})
	require.NoError(t, err)
	return svc
}

func workflowSteps() []ports.DesignStep {
	return []ports.DesignStep{
		{StepNumber: 3, Title: "Bake a cake", Description: "Whisk the sugar"},
		{StepNumber: 1, Title: "Create offset plane", Description: "Create Plane.1 offset from the XY plane"},
		{StepNumber: 2, Title: "Create spline", Description: "A spline through point.1"},
	}
}

func TestNewWithDependencies_Validation(t *testing.T) {
	_, err := NewWithDependencies(nil, testGraph(t), Dependencies{})
	assert.Error(t, err)

	_, err = NewWithDependencies(config.Default(), nil, Dependencies{})
	assert.Error(t, err)
}

func TestResolveSteps(t *testing.T) {
	store := &memoryHistory{}
	svc := newTestService(t, store)

	report, err := svc.ResolveSteps(context.Background(), workflowSteps())
	require.NoError(t, err)
	require.Len(t, report.Items, 3)

	assert.Equal(t, KindSteps, report.Kind)
	assert.Equal(t, []int{1, 2, 3}, []int{report.Items[0].StepNumber, report.Items[1].StepNumber, report.Items[2].StepNumber})
	require.NotEmpty(t, report.Items[0].Matches)
	assert.Equal(t, "add_new_plane_offset", report.Items[0].Matches[0].MethodName)
	require.NotEmpty(t, report.Items[1].Matches)
	assert.Equal(t, "add_new_spline", report.Items[1].Matches[0].MethodName)
	assert.Empty(t, report.Items[2].Matches)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Unmatched)
	assert.Zero(t, report.Failed)
	assert.Equal(t, svc.Graph.Fingerprint(), report.CatalogFingerprint)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, "steps", run.Kind)
	assert.Equal(t, 3, run.Items)
	require.NotEmpty(t, run.Matches)
	assert.Equal(t, 1, run.Matches[0].Rank)
	assert.Equal(t, "step 1", run.Matches[0].ItemKey)
}

func TestResolveSteps_RejectsDuplicates(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.ResolveSteps(context.Background(), []ports.DesignStep{
		{StepNumber: 1, Title: "a"},
		{StepNumber: 1, Title: "b"},
	})
	assert.Error(t, err)
}

func TestResolveSteps_Cancelled(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.ResolveSteps(ctx, workflowSteps())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Items)
}

type staticSource struct {
	steps []ports.DesignStep
}

func (s staticSource) Load(ctx context.Context) ([]ports.DesignStep, error) {
	return s.steps, nil
}

func TestLoadAndResolve(t *testing.T) {
	svc := newTestService(t, nil)
	report, err := svc.LoadAndResolve(context.Background(), staticSource{steps: workflowSteps()})
	require.NoError(t, err)
	assert.Len(t, report.Items, 3)
	assert.Empty(t, report.RunID, "no history store, no run id")
}

const flowSource = `factory = part.hybrid_shape_factory

def step_1_create_plane():
    plane = factory.add_new_plane_offset(ref, 20.0, False)
`

func writeSources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.py"), []byte(flowSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.py"), []byte("def broken(:\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not python"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "venv"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "venv", "lib.py"), []byte("x = 1\n"), 0o644))
	return dir
}

func TestScanSources(t *testing.T) {
	dir := writeSources(t)
	cfg := config.Default()
	cfg.Sources.ExcludeFiles = []string{"broken*"}
	svc, err := NewWithDependencies(cfg, testGraph(t), Dependencies{})
	require.NoError(t, err)

	files, err := svc.ScanSources([]string{dir, filepath.Join(dir, "flow.py")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "flow.py")}, files)

	_, err = svc.ScanSources([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestResolveSources(t *testing.T) {
	dir := writeSources(t)
	store := &memoryHistory{}
	svc := newTestService(t, store)

	report, err := svc.ResolveSources(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, KindSources, report.Kind)
	assert.Equal(t, 1, report.Failed, "broken.py is reported, not fatal")

	var found bool
	for _, it := range report.Items {
		if it.Err != nil {
			assert.Equal(t, filepath.Join(dir, "broken.py"), it.Key)
			continue
		}
		if len(it.Matches) > 0 && it.Matches[0].MethodName == "add_new_plane_offset" {
			found = true
			assert.Equal(t, 1, it.StepNumber)
			assert.Equal(t, "HybridShapeFactory", it.Matches[0].OwningClass)
		}
	}
	assert.True(t, found, "expected the plane call to resolve: %+v", report.Items)
	assert.Len(t, store.runs, 1)
}

func TestHandleChanges_SkipsUnchangedContent(t *testing.T) {
	dir := writeSources(t)
	svc := newTestService(t, nil)
	flow := filepath.Join(dir, "flow.py")

	_, err := svc.ResolveSources(context.Background(), []string{dir})
	require.NoError(t, err)

	report := svc.HandleChanges(context.Background(), []string{flow})
	assert.Empty(t, report.Items, "unchanged content must be skipped")

	require.NoError(t, os.WriteFile(flow, []byte(flowSource+"    plane.reverse()\n"), 0o644))
	report = svc.HandleChanges(context.Background(), []string{flow})
	assert.NotEmpty(t, report.Items)

	require.NoError(t, os.Remove(flow))
	report = svc.HandleChanges(context.Background(), []string{flow, filepath.Join(dir, "notes.txt")})
	assert.Empty(t, report.Items)
}

func TestHealthService(t *testing.T) {
	svc := newTestService(t, nil)
	status := NewHealthService(svc).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok (2 classes, 5 methods)", status.Components["catalog"])
	assert.Equal(t, "disabled", status.Components["reasoning"])
	assert.Equal(t, "disabled", status.Components["history"])

	svc.Config.History.Enabled = true
	status = NewHealthService(svc).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)

	assert.Equal(t, "down", NewHealthService(nil).Check(context.Background()).Status)
}

func TestRuns(t *testing.T) {
	_, err := newTestService(t, nil).Runs(5)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))

	store := &memoryHistory{}
	svc := newTestService(t, store)
	_, err = svc.ResolveSteps(context.Background(), workflowSteps())
	require.NoError(t, err)

	runs, err := svc.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "steps", runs[0].Kind)
}
