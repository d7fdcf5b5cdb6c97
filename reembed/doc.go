// Package reembed recomputes the vectors of stored chunks, typically after
// switching embedding models.
//
// Chunks are read in batches, embedded through an embedding.Batcher,
// normalized to unit length and written back. When an external index is
// configured the refreshed chunks are upserted into it as well.
package reembed
