// Package jwt issues and verifies the HS512 bearer tokens of API clients.
//
// A token names one client in its subject and may carry roles. Verified
// claims travel in the request context (SetAuth / GetAuth).
package jwt
