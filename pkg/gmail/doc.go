// Package gmail owns the OAuth2 credential lifecycle for one account owner
// and the Gmail send transport.
//
// The system has no public redirect endpoint, so the authorization flow is
// manual: AuthorizationURL produces a consent URL the account owner opens in
// a browser, and CompleteAuthorization accepts either the authorization code
// or the full redirect URL they paste back. Offline access and a forced
// consent screen guarantee a refresh token is issued on every authorization.
//
// Authenticate is the dispatcher's entry point: it loads the persisted
// token, refreshes it in place when expired, and returns a Transport bound
// to the fresh token. Refresh failures are not retried here; the dispatch
// pipeline front-loads authentication so a stale credential aborts a run
// before anything is sent.
//
// Credentials, tokens, and the resume attachment are persisted through a
// blobstore.Store under per-owner keys:
//
//	users/{id}/credentials.json
//	users/{id}/token.json
//	users/{id}/resume.pdf
//
// Usage:
//
//	store := gmail.NewCredentialStore(blobs)
//	manager := gmail.NewManager(store, gmail.Config{})
//
//	url, err := manager.AuthorizationURL(ctx, ownerID)
//	// user visits url, pastes the code or redirect URL back
//	_, err = manager.CompleteAuthorization(ctx, ownerID, pasted)
//
//	transport, err := manager.Authenticate(ctx, ownerID)
//	err = transport.Send(ctx, envelope)
package gmail
