// Package sec provides authentication and security primitives for the HTTP
// API and the realtime relay.
//
// # Authentication
//
// Login exchanges a username and password for a signed JWT access token.
// Subsequent requests carry the token as a bearer credential; the realtime
// handshake carries it as a query parameter. Credentials are validated
// against bcrypt password hashes stored in the database.
//
// # Components
//
//   - [TokenIssuer]: Mints and verifies HS256 access tokens
//   - [Authenticate]: Resolves a bearer token to a stored user
//   - [HashPassword], [ComparePassword]: bcrypt password hashing utilities
package sec
