// Package secret resolves secret references in configuration values.
//
// Values pass through strict environment expansion first (see
// ExpandEnvStrict); references with the "secretref:" prefix are then
// resolved through registered providers:
//
//	secretref:env:OPENAI_API_KEY
//	secretref:file:redis/password
//
// A reference can stand alone or sit inside a larger value, as in
// "Bearer secretref:env:TOKEN". Providers must not log secret values.
package secret
