// gatekeeper/model/neo4j/nodes.go
package echo_neo4j

// Node Labels
const (
	// LabelSubject represents a user or service principal that can hold grants
	LabelSubject = "Subject"

	// LabelRole represents a named bundle of grants assignable to subjects
	LabelRole = "Role"

	// LabelResource represents a protected route pattern, keyed "METHOD:path"
	LabelResource = "Resource"

	// LabelAPIKey represents a signed-request API key and its shared secret
	LabelAPIKey = "ApiKey"
)
