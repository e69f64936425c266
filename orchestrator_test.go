package zonalbatch

import (
	"context"
	"github.com/bmizerany/assert"
	"github.com/chararch/zonalbatch/file"
	"github.com/chararch/zonalbatch/status"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

//fakeExtractor reports the feature id as every statistic
type fakeExtractor struct {
	failStarts map[int64]bool
	floatIDs   bool
	block      bool
	calls      int32
}

func (e *fakeExtractor) Extract(ctx context.Context, rasterURI string, polygons *vector.Layer, stats []string, includeCols []string) (*table.Table, error) {
	atomic.AddInt32(&e.calls, 1)
	features := polygons.Features()
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(features) > 0 && e.failStarts[features[0].ID] {
		return nil, errors.New("raster read error")
	}
	idType := table.Int64
	if e.floatIDs {
		idType = table.Float64
	}
	idCol := table.NewColumn(includeCols[0], idType, make([]interface{}, len(features))...)
	columns := []*table.Column{idCol}
	for _, stat := range stats {
		columns = append(columns, table.NewColumn(stat, table.Float64, make([]interface{}, len(features))...))
	}
	for i, f := range features {
		id := f.Properties[includeCols[0]]
		if e.floatIDs {
			id = float64(id.(int64))
		}
		idCol.Values[i] = id
		for _, c := range columns[1:] {
			c.Values[i] = float64(f.ID)
		}
	}
	return table.New(columns...)
}

type recordingConsole struct {
	mu    sync.Mutex
	lines []string
}

func (c *recordingConsole) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *recordingConsole) Info(msg string)    { c.add("INFO " + msg) }
func (c *recordingConsole) Warning(msg string) { c.add("WARNING " + msg) }
func (c *recordingConsole) Error(msg string)   { c.add("ERROR " + msg) }

func (c *recordingConsole) contains(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	warnings []string
}

func (n *recordingNotifier) Warn(msg string) {
	n.warnings = append(n.warnings, msg)
}

type recordingProgress struct {
	IntProgress
	mu     sync.Mutex
	values []int
}

func (p *recordingProgress) SetValue(value int) {
	p.mu.Lock()
	p.values = append(p.values, value)
	p.mu.Unlock()
	p.IntProgress.SetValue(value)
}

type waitListener struct {
	before int32
	done   chan *RunExecution
}

func newWaitListener() *waitListener {
	return &waitListener{done: make(chan *RunExecution, 1)}
}

func (l *waitListener) BeforeRun(execution *RunExecution) BatchError {
	atomic.AddInt32(&l.before, 1)
	return nil
}

func (l *waitListener) AfterRun(execution *RunExecution) BatchError {
	l.done <- execution
	return nil
}

func (l *waitListener) wait(t *testing.T) *RunExecution {
	select {
	case execution := <-l.done:
		return execution
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
	return nil
}

func zonesLayer(n int) *vector.Layer {
	fields := []vector.Field{{Name: "id", Type: vector.Int64}, {Name: "name", Type: vector.String}}
	features := make([]*vector.Feature, n)
	for i := range features {
		x := float64(i)
		features[i] = &vector.Feature{
			Geometry:   orb.Polygon{orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}},
			Properties: map[string]interface{}{"id": int64(100 + i), "name": "zone"},
		}
	}
	return vector.NewLayer("zones", fields, features)
}

type fixture struct {
	scheduler *PoolScheduler
	extractor *fakeExtractor
	console   *recordingConsole
	notifier  *recordingNotifier
	action    *ToggleAction
	progress  *recordingProgress
	project   *MemoryProject
	listener  *waitListener
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		scheduler: NewPoolScheduler(4),
		extractor: &fakeExtractor{failStarts: map[int64]bool{}},
		console:   &recordingConsole{},
		notifier:  &recordingNotifier{},
		action:    NewToggleAction(),
		progress:  &recordingProgress{},
		project:   NewMemoryProject(),
		listener:  newWaitListener(),
	}
	t.Cleanup(f.scheduler.Close)
	return f
}

func (f *fixture) builder() *orchestratorBuilder {
	return NewOrchestrator().
		Scheduler(f.scheduler).
		Extractor(f.extractor).
		Console(f.console).
		Notifier(f.notifier).
		Action(f.action).
		Progress(f.progress).
		Project(f.project).
		Listener(f.listener)
}

func virtualRequest(layer *vector.Layer, jobs int) FormValues {
	return FormValues{
		Raster:       "mem://dem",
		Vector:       layer,
		IDField:      "id",
		Aggregates:   []string{"mean", "sum"},
		ParallelJobs: jobs,
		Virtual:      true,
		Prefix:       "elev",
	}
}

func TestOrchestrator_Virtual(t *testing.T) {
	f := newFixture(t)
	o := f.builder().Build()
	layer := zonesLayer(10)

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(layer, 4)))
	execution := f.listener.wait(t)

	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, 5, len(execution.Batches))
	assert.Equal(t, 10, execution.CombinedRows)
	assert.Equal(t, 10, execution.OutputRows)
	assert.Equal(t, nil, execution.FailError)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.listener.before))
	for _, b := range execution.Batches {
		assert.Equal(t, status.COMPLETED, b.Status)
		assert.Equal(t, 2, b.RowCount)
	}

	layers := f.project.Layers()
	assert.Equal(t, 1, len(layers))
	result := layers[0]
	assert.Equal(t, VirtualLayerName, result.Name())
	assert.Equal(t, 10, result.FeatureCount())
	names := make([]string, 0)
	for _, field := range result.Fields() {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"id", "name", "elev_mean", "elev_sum"}, names)
	for i := 0; i < 10; i++ {
		props := result.Feature(i).Properties
		assert.Equal(t, int64(100+i), props["id"])
		assert.Equal(t, float64(i), props["elev_mean"])
	}
	assert.Equal(t, layer.Feature(3).Geometry, result.Feature(3).Geometry)

	assert.T(t, f.console.contains("INFO Zonal ExactExtract task result shape: (10, 3)"))
	assert.Equal(t, []int{16, 32, 48, 64, 80, 96, 0}, f.progress.values)
	assert.T(t, f.action.Enabled())
	assert.T(t, !o.Running())
	assert.Equal(t, []int64{}, layer.SelectedFeatureIDs())
}

func TestOrchestrator_FailedBatch(t *testing.T) {
	f := newFixture(t)
	f.extractor.failStarts[5] = true
	o := f.builder().Build()

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(10), 2)))
	execution := f.listener.wait(t)

	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, 5, execution.CombinedRows)
	assert.Equal(t, 10, execution.OutputRows)
	assert.NotEqual(t, nil, execution.FailError)
	assert.Equal(t, status.COMPLETED, execution.Batches[0].Status)
	assert.Equal(t, status.FAILED, execution.Batches[1].Status)
	assert.T(t, f.console.contains("ERROR batch err, code:compute, message:calculation subtask 5 failed"))

	result := f.project.Layers()[0]
	assert.Equal(t, 10, result.FeatureCount())
	assert.Equal(t, 4.0, result.Feature(4).Properties["elev_mean"])
	for i := 5; i < 10; i++ {
		assert.Equal(t, nil, result.Feature(i).Properties["elev_mean"])
		assert.Equal(t, int64(100+i), result.Feature(i).Properties["id"])
	}
	assert.Equal(t, []int{33, 66, 99, 0}, f.progress.values)
}

func TestOrchestrator_IDTypeRestored(t *testing.T) {
	f := newFixture(t)
	f.extractor.floatIDs = true
	o := f.builder().Build()

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(6), 3)))
	execution := f.listener.wait(t)
	assert.Equal(t, status.COMPLETED, execution.Status)
	result := f.project.Layers()[0]
	for i := 0; i < 6; i++ {
		assert.Equal(t, int64(100+i), result.Feature(i).Properties["id"])
		assert.Equal(t, float64(i), result.Feature(i).Properties["elev_sum"])
	}
}

func TestOrchestrator_NativeIntIDs(t *testing.T) {
	f := newFixture(t)
	o := f.builder().Build()
	fields := []vector.Field{{Name: "id", Type: vector.Int}}
	features := make([]*vector.Feature, 4)
	for i := range features {
		var id interface{} = 100 + i
		if i%2 == 1 {
			id = int32(100 + i)
		}
		x := float64(i)
		features[i] = &vector.Feature{
			Geometry:   orb.Polygon{orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}},
			Properties: map[string]interface{}{"id": id},
		}
	}

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(vector.NewLayer("zones", fields, features), 2)))
	execution := f.listener.wait(t)
	assert.Equal(t, status.COMPLETED, execution.Status)
	result := f.project.Layers()[0]
	idField, _ := result.Field("id")
	assert.Equal(t, vector.Int64, idField.Type)
	for i := 0; i < 4; i++ {
		props := result.Feature(i).Properties
		assert.Equal(t, int64(100+i), props["id"])
		assert.Equal(t, float64(i), props["elev_mean"])
		assert.Equal(t, float64(i), props["elev_sum"])
	}
}

func TestOrchestrator_FileOutput(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	publishDir := filepath.Join(dir, "published")
	o := f.builder().
		Persister(&FilePersister{Store: &file.LocalFileSystem{}, Checksum: file.MD5}).
		Publisher(&Publisher{Target: &file.LocalFileSystem{}, Dir: publishDir, Checksum: file.OKFlag}).
		Build()

	values := virtualRequest(zonesLayer(4), 2)
	values.Virtual = false
	values.OutputPath = filepath.Join(dir, "{layer}_stats.geojson")
	assert.Equal(t, nil, o.Calculate(context.Background(), values))
	execution := f.listener.wait(t)

	assert.Equal(t, status.COMPLETED, execution.Status)
	output := filepath.Join(dir, "zones_stats.geojson")
	assert.Equal(t, output, execution.OutputPath)
	assert.T(t, f.console.contains("INFO "+msgFinished))
	layers := f.project.Layers()
	assert.Equal(t, 1, len(layers))
	assert.Equal(t, "zones_stats", layers[0].Name())
	assert.Equal(t, 4, layers[0].FeatureCount())
	assert.Equal(t, 3.0, layers[0].Feature(3).Properties["elev_mean"])

	_, err := os.Stat(output + ".md5")
	assert.Equal(t, nil, err)
	_, err = os.Stat(filepath.Join(publishDir, "zones_stats.geojson"))
	assert.Equal(t, nil, err)
	_, err = os.Stat(filepath.Join(publishDir, "zones_stats.geojson.ok"))
	assert.Equal(t, nil, err)
}

type brokenPersister struct {
	written int32
}

func (p *brokenPersister) Write(ctx context.Context, layer *vector.Layer, path string) error {
	atomic.AddInt32(&p.written, 1)
	return nil
}

func (p *brokenPersister) Load(ctx context.Context, path string) *vector.Layer {
	return vector.NewInvalidLayer("out", path)
}

func TestOrchestrator_ReloadFailure(t *testing.T) {
	f := newFixture(t)
	persister := &brokenPersister{}
	o := f.builder().Persister(persister).Build()

	values := virtualRequest(zonesLayer(4), 2)
	values.Virtual = false
	values.OutputPath = "/tmp/out.geojson"
	assert.Equal(t, nil, o.Calculate(context.Background(), values))
	execution := f.listener.wait(t)

	assert.Equal(t, status.FAILED, execution.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&persister.written))
	assert.T(t, f.console.contains("ERROR Unable to load layer from /tmp/out.geojson"))
	assert.Equal(t, 0, len(f.project.Layers()))
	assert.T(t, f.action.Enabled())
	assert.T(t, !o.Running())
	assert.Equal(t, 0, f.progress.Value())
}

func TestOrchestrator_Validation(t *testing.T) {
	f := newFixture(t)
	o := f.builder().Build()

	values := virtualRequest(zonesLayer(4), 2)
	values.Raster = ""
	values.IDField = ""
	err := o.Calculate(context.Background(), values)
	assert.Equal(t, ErrCodeValidation, err.Code())
	assert.Equal(t, []string{MsgNoLayer}, f.notifier.warnings)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.extractor.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.listener.before))
	assert.T(t, !o.Running())
	assert.T(t, f.action.Enabled())
	assert.Equal(t, runState{}, o.run)
}

func TestOrchestrator_CancelAndGuard(t *testing.T) {
	f := newFixture(t)
	f.extractor.block = true
	o := f.builder().Build()

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(4), 2)))
	assert.T(t, o.Running())
	err := o.Calculate(context.Background(), virtualRequest(zonesLayer(4), 2))
	assert.Equal(t, ErrCodeConcurrency, err.Code())
	assert.Equal(t, []string{msgRunning}, f.notifier.warnings)

	o.Cancel()
	execution := f.listener.wait(t)
	assert.Equal(t, status.CANCELED, execution.Status)
	assert.T(t, f.console.contains("WARNING "+msgCanceled))
	assert.Equal(t, 0, len(f.project.Layers()))
	assert.T(t, !o.Running())
	assert.T(t, f.action.Enabled())
}

//faultyProgress panics once when set to the given value
type faultyProgress struct {
	IntProgress
	at      int
	tripped int32
}

func (p *faultyProgress) SetValue(value int) {
	if value == p.at && atomic.CompareAndSwapInt32(&p.tripped, 0, 1) {
		panic("progress widget gone")
	}
	p.IntProgress.SetValue(value)
}

func TestOrchestrator_PanicWhileFinishing(t *testing.T) {
	f := newFixture(t)
	progress := &faultyProgress{at: 99}
	o := f.builder().Progress(progress).Build()

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(4), 2)))
	execution := f.listener.wait(t)
	assert.Equal(t, status.FAILED, execution.Status)
	assert.NotEqual(t, nil, execution.FailError)
	assert.T(t, !o.Running())
	assert.T(t, f.action.Enabled())
	assert.Equal(t, runState{}, o.run)

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(4), 2)))
	execution = f.listener.wait(t)
	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, 1, len(f.project.Layers()))
}

func TestOrchestrator_CleanIdempotent(t *testing.T) {
	f := newFixture(t)
	o := f.builder().Build()
	o.run = runState{
		ctx:         context.Background(),
		descriptor:  &Descriptor{},
		tasks:       []*Task{NewTask("t", 0, nil)},
		results:     NewResultList(),
		coordinator: NewTask("c", 0, nil),
		inputTable:  table.Empty(),
		execution:   &RunExecution{},
	}
	f.progress.SetValue(40)

	o.clean()
	once := o.run
	o.clean()
	assert.Equal(t, once, o.run)
	assert.Equal(t, runState{}, o.run)
	assert.Equal(t, 0, f.progress.Value())
}

func TestOrchestrator_EmptyLayer(t *testing.T) {
	f := newFixture(t)
	o := f.builder().Build()

	assert.Equal(t, nil, o.Calculate(context.Background(), virtualRequest(zonesLayer(0), 3)))
	execution := f.listener.wait(t)
	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, 0, len(execution.Batches))
	assert.Equal(t, 0, f.project.Layers()[0].FeatureCount())
	assert.T(t, f.console.contains("INFO Zonal ExactExtract task result shape: (0, 1)"))
}
