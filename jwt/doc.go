// Package jwt issues and verifies HS256 access and refresh tokens. Each token
// type has its own secret and lifetime and carries an explicit type claim that
// is checked on every parse.
package jwt
