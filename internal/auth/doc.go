// Package auth protects the admin diagnostics API.
//
// Operators mint HS256 JWTs with the configured auth.jwt_secret (see the
// "token" CLI command). Every token carries iss "pdfmerge", a subject naming
// the operator and an expiry; tokens without one are rejected.
//
//	verifier, err := auth.NewJWTVerifier([]byte(secret))
//	token, err := verifier.Generate("ops", 24*time.Hour)
//
// HTTPAuthMiddleware wraps handlers so only requests carrying
// "Authorization: Bearer <token>" reach them; the subject is available to
// handlers through FromContext.
package auth
