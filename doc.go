/*
Stitch reconciles segmentation labels across the boundaries of adjacent blocks
of a large 3-D volume that was segmented block by block.

Philosophy

Each block is segmented independently with a halo of voxels shared with its
neighbors, so one physical object receives unrelated labels in every block it
crosses.  For each pair of neighboring blocks, stitch counts how often labels
co-occur in the shared halo, pairs labels with a stable matching so no two labels
would rather be paired with each other than with their assigned partners, and
records each pairing as a merge edge pointing toward the smaller label.  Both
blocks are rewritten through the resolved merges and each block keeps an
append-only merge history.  A global consolidation step can later union all
histories into one label per object.

Blocks are reconciled in six rounds, even then odd pairs along X, Y and Z, and
no block is written by two jobs of the same round, so every job of a round can
run in parallel as a separate process with no locking.

Packages

	stitch/     logging, error kinds, points and axes, compression
	labels/     interning, overlap extraction, counting, stable matching, merges
	blockfile/  the block file holding "labels" and optional "merges" datasets
	storage/    local files and gs://, s3://, file://, mem:// buckets
	pairwise/   one reconciliation job with retries and atomic writes
	schedule/   grid discovery, round planning, the in-process runner

Commands

	pairwise-match  <block A> <block B> <direction> <halo> <output A> <output B>
	stitch-plan     <block directory>
	block-info      <block file> ...
*/
package stitch
