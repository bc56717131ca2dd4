/*
Package stitch holds the low-level pieces shared by every part of the block
stitching pipeline: leveled logging, the error taxonomy used to steer retries,
3-D points and axes, and the compressed serialization of voxel payloads.

Higher-level packages build on it:

	labels     overlap extraction, co-occurrence counting, stable matching, merge resolution
	blockfile  the persisted per-block file with its "labels" and "merges" datasets
	storage    local and bucket-backed file stores
	pairwise   one retry-safe reconciliation of two adjacent blocks
	schedule   the even/odd, axis-by-axis ordering of reconciliations over a block grid
*/
package stitch
