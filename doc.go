// Package accounts is the core of the user roles admin console. It keeps
// two sources of truth consistent: the identity provider, which owns
// credentials, and the profile store, which owns the "users" records that
// carry names, mobile numbers and roles.
//
// Sessions:
//   - SessionProvider hands out a primary session for the signed-in
//     administrator and an isolated secondary session used to create new
//     identities, so creating an account never signs the administrator out.
//     The secondary session is a scoped handle; WithSecondary releases it on
//     every exit path.
//
// Lifecycle:
//   - Lifecycle runs create, update and delete through LifecycleMachine,
//     a finite state machine with a compensation table. When a profile write
//     fails after the identity was created, the identity is deleted again.
//     If that fails too the error is KindInconsistent with
//     compensated=false. The identity is left without a profile; the
//     Reconciler lists it under Unprofiled when the backend implements
//     IdentityLister, otherwise only the audit event records it.
//   - Delete removes the profile record only.
//
// Console:
//   - Console is the boundary used by the CLI and the JSON API. It gates
//     sign-in on an admin profile, requires a settled admin status for every
//     user operation and turns every failure into a Notification. Audited
//     actions are forwarded to an ActivitySink.
package accounts
