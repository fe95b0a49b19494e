// Package auth models caller identity for the request pipeline.
//
// Authenticators validate API keys or JWT bearer tokens (alone or as
// a composite chain) and yield an Identity, which travels on the
// context. The pipeline reads the principal back for rate-limit
// keying and log attribution; the package carries no authorization
// model.
package auth
