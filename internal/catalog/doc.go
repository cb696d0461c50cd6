// Package catalog provides work catalogs: enumerable universes of
// identities the controller should eventually submit.
//
// Two implementations cover the common cases. Static wraps a fixed key
// list held in memory. Group enumerates the work units registered under
// a group label in the store, optionally narrowed by field predicates
// and ordered by identity fields; the predicate language is a small
// sealed tree (Equals, And) compiled to parameterized SQL over the
// canonical identity column.
//
// Enumeration must behave like a pure query: no side effects, no
// duplicates, stable results for unchanged inputs. The controller
// verifies the duplicate-free guarantee on every batch and refuses to
// act when it is broken.
package catalog
