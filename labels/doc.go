/*
Package labels reconciles the label IDs of two adjacent, independently segmented blocks.

A reconciliation runs leaves first:

	Interner       label -> dense id table built over both full blocks (0 stays 0)
	ExtractOverlap the comparison regions on either side of the shared boundary
	CountOverlap   sparse joint histogram of dense id pairs plus per-id areas
	StableMatch    deferred acceptance with block A labels proposing
	NewEdges       matched pairs as (larger, smaller) merge edges
	Resolve        union of new edges and prior histories, flattened to a canonical map

Histograms enumerate pairs in row-major scan order of the comparison region, so
preference ties, and therefore matchings, are reproducible across runs.
*/
package labels
