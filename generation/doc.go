// Package generation produces text grounded in stored documents: cached
// summaries of a folder or a set of files, answers to questions built from
// hybrid search results, and cached recommendation sets with template
// fallbacks.
package generation
