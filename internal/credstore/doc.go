// Package credstore manages named credentials in an age-sealed file.
//
// Credentials are stored as a single JSON payload encrypted to a scrypt
// (passphrase) recipient, so the store is one portable file with no key
// material beside it. Generated artifacts never embed credential values;
// they carry {{credential:NAME}} references, and Export resolves names to
// an env file a test runner can source at execution time.
package credstore
