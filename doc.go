// Package registry provides the identity and record keeping core for
// a multi tenant farmer registry: credential verification, signed
// session tokens, role and ownership based access control, and the
// account, profile, and crop record lifecycle.
//
// Accounts and roles:
//   - Every account carries a Role, either ADMIN or FARMER, fixed at
//     creation. Farmer accounts own exactly one Farmer profile, which
//     in turn owns the account's Crop records.
//   - Registration creates the account and its profile atomically.
//     Admin accounts are provisioned with CreateAdmin and derive a
//     deterministic id from their email, so repeated bootstraps
//     converge on the same record.
//
// Sessions:
//   - Auther verifies credentials against bcrypt hashes and issues
//     HS256 signed tokens through TokenService. Validation
//     distinguishes malformed tokens, bad signatures, and expired
//     tokens while login failures always collapse into one generic
//     credential error.
//
// Access policy:
//   - CanAccess is the single decision point for protected
//     operations: role membership first, then the admin bypass, then
//     ownership. OwnerScope produces the matching query filter for
//     listings and aggregates. FarmersService and CropsService run
//     every operation through it before touching the repositories.
package registry
