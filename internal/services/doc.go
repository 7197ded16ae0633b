// Package services implements the remote clients used by the pipeline.
//
// # Source
//
// [FlickrService] implements [Source] over the Flickr REST API: paginated listings of the
// user's photos and albums, album membership, per-photo detail and sizes, plus raw downloads.
// Every paginated response type reports its page count through PageCount so the query engine can
// discover how many pages to request.
//
// # Destination
//
// [PhotosService] implements [Destination] over the Google Photos Library API: album creation,
// raw byte uploads returning upload tokens, and batched media item creation.
//
// # Authentication
//
// Both clients accept an [Authorizer] that mutates each outgoing request before it is sent:
//   - [OAuth1] : HMAC-SHA1 request signing for the source, applied by a dghubble/oauth1 transport
//   - [TokenSourceAuth] : bearer tokens from an [oauth2.TokenSource] for the destination
//   - [NoAuth] : tests and public calls
//
// # Error Handling
//
// Non-2xx responses are returned as [*HTTPError] (wrapping [shared.ErrStatus]); Flickr "stat: fail"
// payloads as [*APIError] (wrapping [shared.ErrAPIRequest]); malformed or incomplete payloads wrap
// [shared.ErrDecode]. Requests are rate limited with [rate.Limiter] and retried with exponential
// backoff on 429 and 502-504 responses.
package services
