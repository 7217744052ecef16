// Package pattern finds historical price windows that look like a query
// window and turns their realized forward moves into a directional call.
//
// A search runs in five stages:
//
//	normalize → LB_Keogh prefilter → windowed DTW (early abandon) → top-K → aggregate
//
// The lower bound and the DTW budget both use the distance of the current
// K-th best match once the result list is full, so the cost of a search drops
// as good matches accumulate.
//
// Everything here is pure computation over caller-supplied data. A search
// allocates its own scratch buffers, starts no goroutines and performs no
// I/O, so concurrent searches need no coordination. Hosts that want a time
// or size budget stop the CandidateIterator early (see Limit).
package pattern
