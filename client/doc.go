// Package client provides a fluent HTTP request builder and the engine that
// executes it on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options. The Client owns
// the transport stack and hands out [Request] values:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithThrottle(10, 5),
//	)
//
// # Making Requests
//
// Chain setters on a Request and finish with a terminal verb:
//
//	resp, err := c.To("https://api.example.com/v1/items").
//		WithBearerToken(token).
//		RetryDefault(3).
//		Post(ctx, item)
//
// Synchronous sends retry 5xx statuses and transport failures. Any status
// below 500 is returned as a [Response] without an error, so 4xx must be
// checked with [Response.ClientError] or [Response.Failed].
//
// # Async and Batch
//
// In async mode terminal verbs return immediately and [Request.Wait]
// collects results in dispatch order:
//
//	req := c.New().Async(true)
//	req.To(a).Get(ctx)
//	req.To(b).Get(ctx)
//	results := req.Wait(true)
//
// [Request.ToBatch] sends the same options to several URLs in order and
// fails fast.
//
// # Scopes
//
// The With* scope methods ([Request.WithScope], [Request.WithBaseURL],
// [Request.WithHTTP2] and friends) return an independent clone, leaving
// the receiver unchanged.
//
// # Downloading Files
//
// [Request.Download] streams a response body to disk with optional
// checksum verification and progress reporting:
//
//	err = c.To(u).WithProgress(report).Download(ctx, "/tmp/file.bin",
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// For lower-level control see the
// [github.com/adamwoolhether/httpchain/client/download] package.
package client
