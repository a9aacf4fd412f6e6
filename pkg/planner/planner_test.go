package planner

import (
	"errors"
	"testing"

	"github.com/datagrove/arraypack/pkg/core"
)

func checkInvariants(t *testing.T, full, chunk, buffer core.Shape) {
	t.Helper()
	if chunk.Rank() != full.Rank() || buffer.Rank() != full.Rank() {
		t.Fatalf("rank mismatch: full=%v chunk=%v buffer=%v", full, chunk, buffer)
	}
	for i := range full {
		ext := full[i]
		if ext == 0 {
			ext = 1
		}
		if chunk[i] < 1 || chunk[i] > ext {
			t.Errorf("axis %d: chunk %d out of [1,%d]", i, chunk[i], ext)
		}
		if buffer[i] < chunk[i] || buffer[i] > ext {
			t.Errorf("axis %d: buffer %d out of [%d,%d]", i, buffer[i], chunk[i], ext)
		}
		if buffer[i] < ext && buffer[i]%chunk[i] != 0 {
			t.Errorf("axis %d: buffer %d not a multiple of chunk %d", i, buffer[i], chunk[i])
		}
	}
}

func TestPlanSmallArrayFitsWhole(t *testing.T) {
	desc := core.Descriptor{Location: "acquisition/small", Shape: core.Shape{2, 3}, Dtype: core.Float32}
	chunk, buffer, err := Plan(desc, core.PlannerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if !chunk.Equal(core.Shape{2, 3}) || !buffer.Equal(core.Shape{2, 3}) {
		t.Errorf("want chunk=buffer=(2,3), got chunk=%v buffer=%v", chunk, buffer)
	}
}

func TestPlanChannelGroupingRule(t *testing.T) {
	// A wide multi-channel stream must chunk the channel axis in groups,
	// regardless of the byte-budget-only computation.
	desc := core.Descriptor{Location: "acquisition/series", Shape: core.Shape{10000, 128}, Dtype: core.Int16}
	cfg := core.PlannerConfig{MemoryBudgetBytes: 1 << 20}
	chunk, buffer, err := Plan(desc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if chunk[1] != 64 {
		t.Errorf("channel axis chunk = %d, want 64", chunk[1])
	}
	checkInvariants(t, desc.Shape, chunk, buffer)
}

func TestPlanNarrowStreamKeepsChannelAxis(t *testing.T) {
	desc := core.Descriptor{Location: "acquisition/narrow", Shape: core.Shape{1 << 22, 8}, Dtype: core.Int16}
	cfg := core.PlannerConfig{MemoryBudgetBytes: 4 << 20}
	chunk, buffer, err := Plan(desc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if chunk[1] != 8 {
		t.Errorf("channel axis chunk = %d, want full extent 8", chunk[1])
	}
	checkInvariants(t, desc.Shape, chunk, buffer)
}

func TestPlanInvariantsAcrossShapes(t *testing.T) {
	shapes := []core.Shape{
		{1},
		{7},
		{1 << 24},
		{100, 100, 100},
		{3, 1 << 22},
		{1 << 20, 384},
		{5, 4, 3, 2},
	}
	budgets := []int64{1 << 10, 1 << 16, 1 << 22, 1 << 30}
	for _, shape := range shapes {
		for _, budget := range budgets {
			desc := core.Descriptor{Location: "x/y", Shape: shape, Dtype: core.Float64}
			chunk, buffer, err := Plan(desc, core.PlannerConfig{MemoryBudgetBytes: budget})
			if err != nil {
				t.Fatalf("shape %v budget %d: %v", shape, budget, err)
			}
			checkInvariants(t, shape, chunk, buffer)

			chunkBytes := chunk.Elements() * 8
			if chunkBytes > budget {
				t.Errorf("shape %v budget %d: chunk bytes %d exceed budget", shape, budget, chunkBytes)
			}
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	desc := core.Descriptor{Location: "a/b", Shape: core.Shape{123457, 96}, Dtype: core.Int32}
	cfg := core.PlannerConfig{MemoryBudgetBytes: 3 << 20, TargetChunkBytes: 1 << 18}
	c1, b1, err := Plan(desc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	c2, b2, err := Plan(desc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !c1.Equal(c2) || !b1.Equal(b2) {
		t.Errorf("plan not deterministic: (%v,%v) vs (%v,%v)", c1, b1, c2, b2)
	}
}

func TestPlanZeroLengthAxis(t *testing.T) {
	desc := core.Descriptor{Location: "a/empty", Shape: core.Shape{0, 4}, Dtype: core.Float32}
	chunk, buffer, err := Plan(desc, core.PlannerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if chunk[0] != 1 || buffer[0] != 1 {
		t.Errorf("zero-length axis should plan extent 1, got chunk=%v buffer=%v", chunk, buffer)
	}
	if desc.Shape[0] != 0 {
		t.Error("descriptor shape must keep its explicit zero")
	}
}

func TestPlanScalarLike(t *testing.T) {
	desc := core.Descriptor{Location: "a/scalar", Shape: core.Shape{1}, Dtype: core.Float64}
	chunk, buffer, err := Plan(desc, core.PlannerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if !chunk.Equal(core.Shape{1}) || !buffer.Equal(core.Shape{1}) {
		t.Errorf("want chunk=buffer=(1), got %v %v", chunk, buffer)
	}
}

func TestPlanErrors(t *testing.T) {
	desc := core.Descriptor{Location: "a/b", Shape: core.Shape{10}, Dtype: core.Float64}

	t.Run("BudgetBelowElement", func(t *testing.T) {
		_, _, err := Plan(desc, core.PlannerConfig{MemoryBudgetBytes: 4})
		if !errors.Is(err, core.ErrPlanning) {
			t.Errorf("want ErrPlanning, got %v", err)
		}
	})

	t.Run("BadDescriptor", func(t *testing.T) {
		bad := core.Descriptor{Location: "a/b", Shape: core.Shape{}, Dtype: core.Float64}
		_, _, err := Plan(bad, core.PlannerConfig{})
		if !errors.Is(err, core.ErrPlanning) {
			t.Errorf("want ErrPlanning, got %v", err)
		}
	})
}

func TestPlanRagged(t *testing.T) {
	data := core.Descriptor{Location: "units/spike_times", Shape: core.Shape{1 << 24}, Dtype: core.Float64}
	index := core.Descriptor{Location: "units/spike_times_index", Shape: core.Shape{512}, Dtype: core.Int64}

	dc, db, ic, ib, err := PlanRagged(data, index, core.PlannerConfig{MemoryBudgetBytes: 8 << 20})
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, data.Shape, dc, db)
	if !ic.Equal(index.Shape) || !ib.Equal(index.Shape) {
		t.Errorf("small index should be a single full chunk, got chunk=%v buffer=%v", ic, ib)
	}

	t.Run("IndexNotOneD", func(t *testing.T) {
		bad := core.Descriptor{Location: "u/i", Shape: core.Shape{4, 4}, Dtype: core.Int64}
		_, _, _, _, err := PlanRagged(data, bad, core.PlannerConfig{})
		if !errors.Is(err, core.ErrPlanning) {
			t.Errorf("want ErrPlanning, got %v", err)
		}
	})
}

func TestBufferFor(t *testing.T) {
	desc := core.Descriptor{Location: "a/b", Shape: core.Shape{1 << 20, 64}, Dtype: core.Int16}
	chunk := core.Shape{4096, 64}

	buffer, err := BufferFor(desc, chunk, core.PlannerConfig{MemoryBudgetBytes: 8 << 20})
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, desc.Shape, chunk, buffer)

	t.Run("FitsWhole", func(t *testing.T) {
		small := core.Descriptor{Location: "a/c", Shape: core.Shape{10, 10}, Dtype: core.Int16}
		buffer, err := BufferFor(small, core.Shape{2, 10}, core.PlannerConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if !buffer.Equal(small.Shape) {
			t.Errorf("want buffer=full, got %v", buffer)
		}
	})
}
