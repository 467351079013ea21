// Package partition implements the deterministic HmSearch keyspace
// splitter: given (dimensions, tolerance) it produces an
// ordered, disjoint list of sub-windows covering [0, dimensions) that
// together guarantee pigeonhole coverage of up to `tolerance` errors.
package partition

import "github.com/kerinin/hmsearch/dberrors"

// Partition is an immutable, disjoint bit (or element) range of a
// fingerprint.
type Partition struct {
	Start int
	Width int
}

// Plan deterministically splits a dimensions-bit keyspace into partitions
// given a tolerance. The planner is pure: equal (dimensions, tolerance)
// pairs always yield equal partition lists.
func Plan(dimensions, tolerance int) ([]Partition, error) {
	if dimensions <= 0 {
		return nil, dberrors.Configuration("partition.Plan", dberrors.ErrIllegalTolerance{Dimensions: dimensions, Tolerance: tolerance})
	}
	if tolerance < 0 || tolerance > dimensions {
		return nil, dberrors.Configuration("partition.Plan", dberrors.ErrIllegalTolerance{Dimensions: dimensions, Tolerance: tolerance})
	}

	p := count(dimensions, tolerance)

	headWidth := ceilDiv(dimensions, p)
	tailWidth := dimensions / p
	headCount := dimensions % p

	partitions := make([]Partition, p)
	start := 0
	for i := 0; i < p; i++ {
		width := tailWidth
		if i < headCount {
			width = headWidth
		}
		partitions[i] = Partition{Start: start, Width: width}
		start += width
	}
	return partitions, nil
}

// count is the HmSearch partition-count choice: one partition when
// tolerance is zero, otherwise floor((min(k,d)+3)/2), which guarantees
// pigeonhole coverage of k errors across p partitions.
func count(dimensions, tolerance int) int {
	if tolerance == 0 {
		return 1
	}
	k := tolerance
	if dimensions < k {
		k = dimensions
	}
	return (k + 3) / 2
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
