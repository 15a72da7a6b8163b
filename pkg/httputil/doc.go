// Package httputil provides the HTTP plumbing used to fetch ELK server
// releases.
//
// # Overview
//
//   - [Client]: an http.Client wrapper that sets a User-Agent, classifies
//     status codes and reports requests to observability hooks
//   - [Retry]: exponential backoff for [RetryableError]s, honouring
//     Retry-After
//   - [Store]: typed JSON documents on disk with a TTL, used for release
//     manifests
//
// # Retry
//
// Only errors wrapped in [RetryableError] are retried. [Client.Get] wraps
// network failures, 429 and 5xx responses that way, so a download loop
// is just:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    _, err := client.Download(ctx, url, "elk-server.zip", w, nil)
//	    return err
//	})
//
// Rate-limited responses carry the server's Retry-After in
// [RetryableError.After], which stretches the next wait up to one minute.
//
// # Cache locations
//
// [CacheRoot] resolves $XDG_CACHE_HOME, falling back to ~/.cache. The ELK
// server distribution lives below it in "elk-server" and everything else
// the tool caches in "elk".
package httputil
