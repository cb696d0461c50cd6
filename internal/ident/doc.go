// Package ident defines the identity keys that name units of work.
//
// This package contains value types only. All other internal packages
// import ident; ident imports nothing internal. This keeps identity the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float fields - equality over floats is not a sound identity;
//     use FieldInt for numbers
//   - The canonical form is RFC 8785 JSON (NFC-normalized strings, no
//     HTML escaping) and is the ONLY representation used for set
//     membership and store uniqueness
//   - Keys are immutable once constructed
package ident
