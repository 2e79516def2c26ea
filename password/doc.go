// Package password implements password hashing and verification.
//
// New passwords are hashed with bcrypt (default cost 12) or Argon2id, chosen
// by [Config.Algorithm]. Verification detects the algorithm from the stored
// encoding, so both formats stay valid after a policy change, and
// [Service.NeedsUpgrade] tells the caller when to re-hash on next login.
//
// Argon2id hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// This package owns hashing only. Password policy (length, character classes,
// reuse) is enforced by the Engine.
package password
