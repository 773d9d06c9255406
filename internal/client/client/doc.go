// Package client contains the client-side transport to the verification and
// key servers and the local database bootstrap.
//
// # Error Handling
//
// Every call returns an error matching one of the sentinels in
// internal/common so callers can decide between retrying and giving up:
//
//   - common.ErrNoInternet: the request never got an answer.
//   - common.ErrVerificationServer: the verification server failed (5xx, 429).
//   - common.ErrVerificationFailed: the verification server refused the request.
//   - common.ErrRateLimited, common.ErrServerError: transient key server failures.
//   - common.ErrUploadRejected: the key server refused the upload.
//
// Refusals also carry a *ServerError with the server's error code, so the
// display layer can pick a message.
package client
