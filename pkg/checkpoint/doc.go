// Package checkpoint persists the resumable state of a paginated harvest.
//
// A checkpoint records the next page to fetch, every record merged so far,
// the pagination totals once known and the cookie jar. It is rewritten
// atomically after each merged page and removed when the job completes, so
// its presence means "resume from here".
package checkpoint
