// Package extracthandler exposes a key server authority over HTTP: one
// endpoint describing the server (id and public key share) and one
// extracting user secret key shares for full identities. The matching
// client turns a fleet of such servers into the share sources an unsealer
// needs.
package extracthandler
