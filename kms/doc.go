// Package kms implements a single key server authority: the holder of one
// master key share that extracts identity-bound user secret key shares on
// request.
//
// An authority can be generated fresh or derived deterministically from a
// (seed, index) pair, which is how a fleet of key servers is provisioned from
// operator-held seeds. The master key share never leaves the authority except
// through the explicit share-split backup path in backup.go.
package kms
