// Package reconcile finds identifiers that stored entities reference but
// whose full records were never fetched.
//
// After the entity pass, every stored entity is scanned in key order. The
// properties and values its claims reference are checked against the
// identifier index in large groups, and those unknown or not yet fetched are
// reported. A follow-up fetch or a second entity pass over another dump can
// then fill the gaps.
package reconcile
