// Package o365 is a thin authentication and request wrapper around the
// Office 365 / Microsoft Graph REST API.
//
// Two authentication modes are supported:
//   - Legacy basic auth against the 1.0 API (NewBasicConnection)
//   - OAuth2 authorization-code flow against the Microsoft identity
//     platform for the 2.0 / Graph API (NewOAuthConnection)
//
// # OAuth2 Flow
//
// The identity platform uses the "common" tenant for multi-tenant support:
//   - Auth URL: https://login.microsoftonline.com/common/oauth2/v2.0/authorize
//   - Token URL: https://login.microsoftonline.com/common/oauth2/v2.0/token
//
// The "offline_access" scope is requested so a refresh token is returned.
// Tokens are persisted as JSON (default ~/.o365_token), so the interactive
// authorization step only runs once. The interactive step itself is behind
// the Authorizer interface; ConsoleAuthorizer is the stdin/stdout default
// and automated flows can plug in their own implementation.
//
// # Requests
//
// Connection.GetResponse performs an authenticated GET, refreshes the access
// token once when it is rejected, and normalizes the response's "value"
// array into Items whose field lookup tolerates the inconsistent
// first-letter casing ("Subject" vs "subject") of Office 365 endpoints.
package o365
