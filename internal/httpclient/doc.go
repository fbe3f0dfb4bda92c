// Package httpclient provides the HTTP plumbing of a single load connection.
//
// Every connection owns its own client built by [NewClient]. The underlying
// transport holds at most one TCP or TLS session to the target and does not
// negotiate HTTP/2, so requests on a connection are strictly sequential:
//
//	client := httpclient.NewClient(httpclient.Options{Timeout: 30 * time.Second})
//	ctx, timing := httpclient.WithTiming(ctx)
//	req, err := httpclient.NewRequest(ctx, http.MethodPut, url, header, body)
//	resp, err := client.Do(req)
//	ttfb := timing.TTFB()
//
// Request bodies are described by a [BodySource] so that a retried attempt
// can replay the same bytes. [Probe] performs the preflight reachability
// check before a run starts.
package httpclient
