package hprof

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/hprofstream/hprofstream/pkg/errors"
)

func buildMinimalDump() []byte {
	b := newDumpBuilder(8)
	b.string(1, "com/example/Widget")
	b.loadClass(1, 100, 1)

	classSub := b.classDumpSub(100, 0, 8)
	inst1 := b.instanceDumpSub(1001, 100, make([]byte, 8))
	inst2 := b.instanceDumpSub(1002, 100, make([]byte, 8))
	arraySub := b.primitiveArrayDumpSub(2000, TypeInt, 4)
	b.heapDump(classSub, inst1, inst2, arraySub)
	b.heapSummary(1024, 3)
	return b.bytes()
}

func TestPipeline_Run_EndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 16 // force chunk-boundary-spanning records
	cfg.ChannelDepth = 1

	p := NewPipeline(cfg)
	res, err := p.Run(context.Background(), bytes.NewReader(buildMinimalDump()))
	require.NoError(t, err)

	require.Len(t, res.TopAllocatedClasses, 2)
	names := []string{res.TopAllocatedClasses[0].ClassName, res.TopAllocatedClasses[1].ClassName}
	assert.Contains(t, names, "com.example.Widget")
	assert.Contains(t, names, "int[]")

	var widget ClassStat
	for _, cs := range res.TopAllocatedClasses {
		if cs.ClassName == "com.example.Widget" {
			widget = cs
		}
	}
	assert.Equal(t, int64(2), widget.InstanceCount)
	assert.Greater(t, res.TotalHeapBytes, int64(0))
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestPipeline_Run_DebugStageTimings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	p := NewPipeline(cfg)

	res, err := p.Run(context.Background(), bytes.NewReader(buildMinimalDump()))
	require.NoError(t, err)
	assert.NotEmpty(t, res.StageTimings)
}

func TestPipeline_Run_RejectsUnsupportedIDSize(t *testing.T) {
	b := newDumpBuilder(4)
	p := NewPipeline(DefaultConfig())

	_, err := p.Run(context.Background(), bytes.NewReader(b.bytes()))
	assert.Error(t, err)
	assert.Equal(t, herrors.CodeUnsupportedFormat, herrors.GetErrorCode(err))
}

func TestPipeline_Run_TruncatedMidInstanceDump(t *testing.T) {
	b := newDumpBuilder(8)
	classSub := b.classDumpSub(100, 0, 8)
	instSub := b.instanceDumpSub(1, 100, make([]byte, 8))
	b.heapDump(classSub, instSub)

	full := b.bytes()
	truncated := full[:len(full)-3] // cut off mid payload of the last record

	p := NewPipeline(DefaultConfig())
	_, err := p.Run(context.Background(), bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(DefaultConfig())
	_, err := p.Run(ctx, bytes.NewReader(buildMinimalDump()))
	assert.Error(t, err)
}

func TestPipeline_Run_ClassFilterDoesNotAffectTotals(t *testing.T) {
	// P9: a class filter changes what is shown, never the totals.
	dump := buildMinimalDump()

	plain := DefaultConfig()
	withFilter := DefaultConfig()
	withFilter.ClassFilter = "application"

	p1 := NewPipeline(plain)
	res1, err := p1.Run(context.Background(), bytes.NewReader(dump))
	require.NoError(t, err)

	p2 := NewPipeline(withFilter)
	res2, err := p2.Run(context.Background(), bytes.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, res1.TotalHeapBytes, res2.TotalHeapBytes)

	require.Len(t, res1.TopAllocatedClasses, 2)
	for _, cs := range res2.TopAllocatedClasses {
		assert.NotEqual(t, "com.example.Widget", cs.ClassName)
	}
	assert.Len(t, res2.TopAllocatedClasses, 1)
}
