// Package authapi serves the dashboard's /api/auth endpoints and provides the
// RequireAuth middleware that guards every other API route.
package authapi
