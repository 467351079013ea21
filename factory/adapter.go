package factory

import (
	"time"

	"github.com/kerinin/hmsearch/engine"
	"github.com/kerinin/hmsearch/metrics"
)

// codecDB bridges one statically-typed engine to the byte-oriented DB
// interface: it decodes wire fingerprints on the way in, encodes matches
// on the way out, and instruments every operation.
type codecDB[T comparable] struct {
	name   string
	inner  engine.DB[T]
	decode func([]byte) (T, error)
	encode func(T) []byte
}

// openAdapter moves the engine to its Open state and wraps it. The
// returned DB is immediately usable; Close moves it to Closed.
func openAdapter[T comparable](spec Spec, eng engine.DB[T], decode func([]byte) (T, error), encode func(T) []byte) (DB, error) {
	if err := eng.Open(); err != nil {
		return nil, err
	}
	return &codecDB[T]{
		name:   spec.Name(),
		inner:  eng,
		decode: decode,
		encode: encode,
	}, nil
}

func (d *codecDB[T]) Insert(fp []byte) (bool, error) {
	v, err := d.decode(fp)
	if err != nil {
		return false, err
	}
	metrics.InsertsByIndex.WithLabelValues(d.name).Inc()
	start := time.Now()
	defer func() {
		metrics.OperationLatencyHistogram.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	}()
	return d.inner.Insert(v)
}

func (d *codecDB[T]) Get(fp []byte) ([][]byte, bool, error) {
	q, err := d.decode(fp)
	if err != nil {
		return nil, false, err
	}
	metrics.QueriesByIndex.WithLabelValues(d.name).Inc()
	start := time.Now()
	matches, ok, err := d.inner.Get(q)
	metrics.OperationLatencyHistogram.WithLabelValues("query").Observe(time.Since(start).Seconds())
	if err != nil || !ok {
		return nil, false, err
	}
	metrics.MatchesReturnedHistogram.WithLabelValues(d.name).Observe(float64(len(matches)))
	out := make([][]byte, len(matches))
	for i, m := range matches {
		out[i] = d.encode(m)
	}
	return out, true, nil
}

func (d *codecDB[T]) Remove(fp []byte) (bool, error) {
	v, err := d.decode(fp)
	if err != nil {
		return false, err
	}
	metrics.RemovesByIndex.WithLabelValues(d.name).Inc()
	start := time.Now()
	defer func() {
		metrics.OperationLatencyHistogram.WithLabelValues("remove").Observe(time.Since(start).Seconds())
	}()
	return d.inner.Remove(v)
}

func (d *codecDB[T]) Close() error { return d.inner.Close() }

func (d *codecDB[T]) Dimensions() int { return d.inner.Dimensions() }

func (d *codecDB[T]) Tolerance() int { return d.inner.Tolerance() }
