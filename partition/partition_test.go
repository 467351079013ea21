package partition_test

import (
	"testing"

	"github.com/kerinin/hmsearch/partition"
	"github.com/stretchr/testify/require"
)

func TestPlanZeroToleranceIsSinglePartition(t *testing.T) {
	ps, err := partition.Plan(32, 0)
	require.NoError(t, err)
	require.Equal(t, []partition.Partition{{Start: 0, Width: 32}}, ps)
}

func TestPlanCoversKnownScenario(t *testing.T) {
	// (d=32, k=7) -> widths [7,7,6,6,6], starts [0,7,14,20,26].
	ps, err := partition.Plan(32, 7)
	require.NoError(t, err)
	want := []partition.Partition{
		{Start: 0, Width: 7},
		{Start: 7, Width: 7},
		{Start: 14, Width: 6},
		{Start: 20, Width: 6},
		{Start: 26, Width: 6},
	}
	require.Equal(t, want, ps)
}

func TestPlanCoversExactlyAndWithoutOverlap(t *testing.T) {
	for d := 1; d <= 64; d++ {
		for k := 0; k <= d; k++ {
			ps, err := partition.Plan(d, k)
			require.NoError(t, err)

			sum := 0
			minW, maxW := ps[0].Width, ps[0].Width
			for i, p := range ps {
				require.Equal(t, sum, p.Start, "d=%d k=%d i=%d", d, k, i)
				sum += p.Width
				if p.Width < minW {
					minW = p.Width
				}
				if p.Width > maxW {
					maxW = p.Width
				}
			}
			require.Equal(t, d, sum, "d=%d k=%d", d, k)
			require.LessOrEqual(t, maxW-minW, 1, "d=%d k=%d", d, k)
		}
	}
}

func TestPlanRejectsIllegalTolerance(t *testing.T) {
	_, err := partition.Plan(8, -1)
	require.Error(t, err)
	_, err = partition.Plan(8, 9)
	require.Error(t, err)
	_, err = partition.Plan(0, 0)
	require.Error(t, err)
}
