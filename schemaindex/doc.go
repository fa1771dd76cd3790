// Package schemaindex builds the immutable operation index of a contract.
//
// The index answers two questions: which operation does an operationId name,
// and which operation does a (method, path) pair address. It is built once at
// startup from a contract.Document and then shared read-only by the request
// validator and the request builder.
//
// # Building
//
//	idx, err := schemaindex.Build(doc,
//	    schemaindex.WithLogger(logger),
//	    schemaindex.WithMatchPolicy(schemaindex.MatchSpecificity),
//	)
//	if err != nil {
//	    // *oaserrors.SchemaLoadError: the contract is malformed
//	}
//
// Build rejects operations without a method, duplicate operationIds and
// duplicate (template, method) pairs. Templates are compared with variable
// names erased, so "/foos/{id}" and "/foos/{fooId}" declare the same route.
//
// # Path matching
//
// Templates are matched segment by segment. Literal segments compare exactly;
// a "{var}" segment matches any non-empty segment and captures it. With the
// default MatchDeclarationOrder policy the first template in contract order
// that matches both path and method wins. MatchSpecificity ranks templates
// with more literal text first. Overlapping templates are logged at build
// time with the template the policy picks.
package schemaindex
