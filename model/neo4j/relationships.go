// gatekeeper/model/neo4j/relationships.go
package echo_neo4j

// Relationship Types
const (
	// RelHasRole links a subject to a role
	RelHasRole = "HAS_ROLE"

	// RelGrants links a subject or role to a resource; carries the effect
	RelGrants = "GRANTS"

	// RelIssuedTo links an api key to the subject that owns it
	RelIssuedTo = "ISSUED_TO"
)
