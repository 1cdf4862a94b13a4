// gatekeeper/model/neo4j/attributes.go
package echo_neo4j

// Attribute Keys
const (
	AttrID        = "id"
	AttrType      = "type"
	AttrName      = "name"
	AttrKey       = "key"
	AttrEffect    = "effect"
	AttrSecret    = "secret"
	AttrScopes    = "scopes"
	AttrStatus    = "status"
	AttrExpiresAt = "expiresAt"
	AttrCreatedAt = "createdAt"
	AttrUpdatedAt = "updatedAt"
)
