// Package schema defines named, validated shapes that structured generation
// output must conform to. A Schema pairs an identity (name, description) with
// a minimal JSON-Schema-like parameter specification and a validator that
// either accepts a JSON object or rejects it with a ValidationError naming
// the violating field path.
package schema
