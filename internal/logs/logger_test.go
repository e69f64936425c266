package logs

import (
	"context"
	"github.com/bmizerany/assert"
	"strings"
	"sync"
	"testing"
)

type syncBuilder struct {
	sb strings.Builder
}

func (b *syncBuilder) WriteString(s string) (int, error) {
	return b.sb.WriteString(s)
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("warning")
	assert.Equal(t, Warn, level)
	assert.T(t, ok)
	level, ok = ParseLevel(" debug ")
	assert.Equal(t, Debug, level)
	assert.T(t, ok)
	level, ok = ParseLevel("verbose")
	assert.Equal(t, Info, level)
	assert.T(t, !ok)
}

func TestDefaultLogger_Level(t *testing.T) {
	out := &syncBuilder{}
	l := NewLogger(out, Warn)
	ctx := context.Background()
	l.Debug(ctx, "debug %d", 1)
	l.Info(ctx, "info %d", 2)
	l.Warn(ctx, "warn %d", 3)
	l.Error(ctx, "error %d", 4)
	text := out.sb.String()
	assert.T(t, !strings.Contains(text, "debug 1"))
	assert.T(t, !strings.Contains(text, "info 2"))
	assert.T(t, strings.Contains(text, "[WARN]"))
	assert.T(t, strings.Contains(text, "warn 3"))
	assert.T(t, strings.Contains(text, "[ERROR]"))
	assert.T(t, strings.Contains(text, "logger_test.go"))
}

func TestDefaultLogger_Concurrent(t *testing.T) {
	out := &syncBuilder{}
	l := NewLogger(out, Info)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Info(context.Background(), "line %d", i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, strings.Count(out.sb.String(), "\n"))
}
