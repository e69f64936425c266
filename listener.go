package zonalbatch

import (
	"context"
	"fmt"
	"github.com/chararch/zonalbatch/vector"
	"io"
	"sync"
	"sync/atomic"
)

//Console the message sink shared by the orchestrator and its workers, must be safe for concurrent use
type Console interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

//Notifier shows a warning to the user, validation failures go here
type Notifier interface {
	Warn(msg string)
}

//Action the user action triggering a calculation
type Action interface {
	SetEnabled(enabled bool)
}

//ProgressBar an integer percentage shown to the user
type ProgressBar interface {
	Value() int
	SetValue(value int)
}

//Project receives the result layers
type Project interface {
	AddLayer(layer *vector.Layer)
}

//RunListener run listener
type RunListener interface {
	//BeforeRun execute after the request is validated and before any task is submitted
	BeforeRun(execution *RunExecution) BatchError
	//AfterRun execute after the run ended either normally or abnormally, cleanup already happened
	AfterRun(execution *RunExecution) BatchError
}

//WriterConsole a Console writing one line per message
type WriterConsole struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewWriterConsole(writer io.Writer) *WriterConsole {
	return &WriterConsole{writer: writer}
}

func (c *WriterConsole) write(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "%s: %s\n", level, msg)
}

func (c *WriterConsole) Info(msg string) {
	c.write("INFO", msg)
}

func (c *WriterConsole) Warning(msg string) {
	c.write("WARNING", msg)
}

func (c *WriterConsole) Error(msg string) {
	c.write("ERROR", msg)
}

//logConsole a Console backed by the package logger
type logConsole struct {
}

func (c *logConsole) Info(msg string) {
	logger.Info(context.Background(), "%s", msg)
}

func (c *logConsole) Warning(msg string) {
	logger.Warn(context.Background(), "%s", msg)
}

func (c *logConsole) Error(msg string) {
	logger.Error(context.Background(), "%s", msg)
}

//consoleNotifier a Notifier writing warnings to a Console
type consoleNotifier struct {
	console Console
}

func (n *consoleNotifier) Warn(msg string) {
	n.console.Warning(msg)
}

//ToggleAction an Action remembering its state
type ToggleAction struct {
	enabled int32
}

func NewToggleAction() *ToggleAction {
	return &ToggleAction{enabled: 1}
}

func (a *ToggleAction) SetEnabled(enabled bool) {
	var v int32
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&a.enabled, v)
}

func (a *ToggleAction) Enabled() bool {
	return atomic.LoadInt32(&a.enabled) == 1
}

//IntProgress a ProgressBar holding its value
type IntProgress struct {
	value int64
}

func (p *IntProgress) Value() int {
	return int(atomic.LoadInt64(&p.value))
}

func (p *IntProgress) SetValue(value int) {
	atomic.StoreInt64(&p.value, int64(value))
}

//MemoryProject a Project keeping the added layers in order
type MemoryProject struct {
	mu     sync.Mutex
	layers []*vector.Layer
}

func NewMemoryProject() *MemoryProject {
	return &MemoryProject{}
}

func (p *MemoryProject) AddLayer(layer *vector.Layer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layers = append(p.layers, layer)
}

func (p *MemoryProject) Layers() []*vector.Layer {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]*vector.Layer, len(p.layers))
	copy(result, p.layers)
	return result
}
