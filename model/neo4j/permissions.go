// gatekeeper/model/neo4j/permissions.go

package echo_neo4j

// Grant effects stored on GRANTS relationships
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)
