// Package auth is the session and permission layer of Omnisfera.
//
// Sessions:
//   - A Session is either a platform principal (Workspace == nil, role
//     platform_admin) or a workspace principal carrying the member's
//     permission flags. Session.Validate enforces the split.
//   - TokenService signs sessions into HS256 JWTs and verifies them back.
//     Retired signing keys stay valid for verification by key id.
//   - SessionStore resolves tokens into sessions. Codec failures collapse into
//     "no session"; only store transport errors are returned.
//
// Permissions:
//   - The permission set is closed (can_estudantes ... can_config). Unknown
//     names and missing flags deny. Platform admins pass every check.
//
// Impersonation:
//   - Impersonator lets a platform admin assume a member identity. The token
//     only names the member; role and flags are read from the directory on
//     each resolve, so revoking a flag takes effect immediately.
//
// HTTP:
//   - RouteAuthenticator wires the middleware/guard package into fiber.
//     Public paths pass, API routes get JSON errors and pages are redirected
//     to the login route with the original path preserved.
package auth
