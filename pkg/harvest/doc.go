// Package harvest drives resumable harvests of paginated JSON endpoints.
//
// A Driver walks base_url+1, base_url+2, ... through a retrying fetcher.
// After each page it merges the records it has not seen before (by identity
// key), then atomically rewrites the job's checkpoint with the next page,
// every record so far, the pagination totals and the cookie jar. It stops
// on an empty page or once the reported last page has been merged, writes
// the final snapshot and removes the checkpoint.
//
// When a page cannot be fetched the driver stops and leaves the previous
// checkpoint untouched; running the job again resumes from that page.
//
// States:
//
//	INIT -> LOADING_CHECKPOINT -> FETCHING -> MERGING -> CHECKPOINTING -> FETCHING ...
//	                                 |           |               |
//	                                 v           v               v
//	                         STOPPED_ON_ERROR   DONE            DONE
//
// Pagination totals are sticky: they are taken from the first page that
// reports them and never revised, even if later pages disagree.
package harvest
