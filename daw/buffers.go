// Package daw implements the smoother data-assimilation-window driver
// of spec.md §4.8: the classical, single-iteration, and Gauss-Newton
// (IEnKS) lag-shift ensemble smoothers built on top of the transform
// engine and ensemble.Update.
//
// Grounded on kalman/kf/kf.go's Run method (propagate-then-correct
// chaining), generalized here to a sliding window of several
// observation times instead of one, and on spec.md §9's cyclic-buffer
// design note.
package daw

import "gonum.org/v1/gonum/mat"

// ring is a fixed-capacity ring buffer of sys_dim x N_ens slabs,
// implementing spec.md §9's "fixed-size ring buffer with an index
// offset rather than reallocating" design note. push copies its
// argument in; at returns the live slab (not a copy), so callers that
// mutate it in place (re-analysis) persist the change.
type ring struct {
	slabs []*mat.Dense
	cap   int
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{slabs: make([]*mat.Dense, capacity), cap: capacity}
}

// push appends a copy of m, evicting the oldest slab if the ring is
// full.
func (r *ring) push(m mat.Matrix) {
	if r.cap == 0 {
		return
	}
	rows, cols := m.Dims()
	cp := mat.NewDense(rows, cols, nil)
	cp.Copy(m)

	idx := (r.start + r.n) % r.cap
	if r.n < r.cap {
		r.slabs[idx] = cp
		r.n++
	} else {
		r.slabs[idx] = cp
		r.start = (r.start + 1) % r.cap
	}
}

// len returns the number of slabs currently held (<= capacity).
func (r *ring) len() int { return r.n }

// at returns the i-th oldest slab (0 = oldest), live (not a copy).
func (r *ring) at(i int) *mat.Dense {
	if i < 0 || i >= r.n {
		return nil
	}
	return r.slabs[(r.start+i)%r.cap]
}

// forEachExceptNewest calls fn on every slab except the most recently
// pushed one, in oldest-to-newest order. This is the classical
// smoother's re-analysis iterator of spec.md §4.8 step 4.
func (r *ring) forEachExceptNewest(fn func(m *mat.Dense)) {
	for i := 0; i < r.n-1; i++ {
		fn(r.at(i))
	}
}

// reset discards all held slabs without reallocating the backing
// slice.
func (r *ring) reset() {
	r.start, r.n = 0, 0
}

// Buffers holds the forecast/filtered/posterior ring buffers of
// spec.md §4.8's DAW buffer design: three sys_dim x N_ens x L stacks,
// sized per smoother kind (classical: posterior length lag+shift;
// single-iteration/Gauss-Newton: posterior length shift).
type Buffers struct {
	sysDim, nEns int
	fore, filt, post *ring
}

// NewBuffers allocates ring buffers sized foreCap/filtCap/postCap.
// Forecast and filtered buffers are conventionally sized lag; the
// posterior buffer is lag+shift for the classical smoother or shift
// for single-iteration/Gauss-Newton, per spec.md §4.8.
func NewBuffers(sysDim, nEns, foreCap, filtCap, postCap int) *Buffers {
	return &Buffers{
		sysDim: sysDim,
		nEns:   nEns,
		fore:   newRing(foreCap),
		filt:   newRing(filtCap),
		post:   newRing(postCap),
	}
}

// PushForecast records a forecast slab.
func (b *Buffers) PushForecast(m mat.Matrix) { b.fore.push(m) }

// PushFiltered records a filtered (post-analysis) slab.
func (b *Buffers) PushFiltered(m mat.Matrix) { b.filt.push(m) }

// PushPosterior records a posterior slab.
func (b *Buffers) PushPosterior(m mat.Matrix) { b.post.push(m) }

// ForecastLen, FilteredLen, PosteriorLen report how many slabs are
// currently held in each stack.
func (b *Buffers) ForecastLen() int  { return b.fore.len() }
func (b *Buffers) FilteredLen() int  { return b.filt.len() }
func (b *Buffers) PosteriorLen() int { return b.post.len() }

// ForecastAt, FilteredAt, PosteriorAt return the i-th oldest slab
// (live, not copied) from each stack.
func (b *Buffers) ForecastAt(i int) *mat.Dense  { return b.fore.at(i) }
func (b *Buffers) FilteredAt(i int) *mat.Dense  { return b.filt.at(i) }
func (b *Buffers) PosteriorAt(i int) *mat.Dense { return b.post.at(i) }

// ReanalyzeEarlierPosteriors applies fn to every posterior slab except
// the one most recently pushed, implementing the classical smoother's
// "apply the same transform to every earlier posterior slice" step
// (spec.md §4.8).
func (b *Buffers) ReanalyzeEarlierPosteriors(fn func(m *mat.Dense)) {
	b.post.forEachExceptNewest(fn)
}

// ResetPosterior discards all posterior slabs without reallocating
// them. None of the smoother drivers in this package call it.
func (b *Buffers) ResetPosterior() { b.post.reset() }
