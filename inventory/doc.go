// Package inventory is the client for the remote inventory REST API.
//
// Every request asks a TokenSource for a bearer token and attaches it when
// one exists; requests without a session go out anonymous and the backend
// decides. Non-2xx responses surface as *RequestFailedError. List accepts
// the three response shapes the backend is known to produce and degrades
// anything else to an empty slice.
package inventory
