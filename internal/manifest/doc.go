// Package manifest loads submission plans from CUE.
//
// A plan names the group, the concurrency ceiling, the identity
// schema, the command template units run as, and optionally the units
// themselves:
//
//	plan: {
//		group:      "pbe-sweep"
//		max_active: 2
//		schema: ["prefix", "index"]
//
//		command: {
//			argv: ["simulate", "--tag", "${key.prefix}-${key.index}"]
//		}
//
//		units: [
//			["pbe", 1],
//			["pbe", 2],
//		]
//	}
//
// Loading validates everything up front: required fields, a positive
// ceiling, schema-conforming units, float-free key fields, and command
// placeholders that name real schema fields. Errors carry CUE source
// positions so an operator can fix the manifest without guessing.
//
// ${key.<field>} placeholders in argv, env, and dir expand per unit
// when the plan's payload factory builds the command for an identity.
package manifest
