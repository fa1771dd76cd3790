// Package contract loads an OpenAPI contract into the in-memory model used by
// the rest of oasgate.
//
// Both Swagger 2.0 and OpenAPI 3.x documents are accepted, in YAML or JSON.
// The loader keeps paths and operations in declaration order, merges
// path-level parameters into each operation and inlines local $ref pointers
// so that every schema handed to the checking engine is self-contained.
// A reference back into a schema that is still being inlined stays a $ref;
// its target is collected in Document.Definitions.
//
// # Usage
//
//	doc, err := contract.ParseWithOptions(contract.WithFilePath("api.yaml"))
//	if err != nil {
//	    var pe *oaserrors.ParseError
//	    if errors.As(err, &pe) {
//	        log.Fatalf("line %d: %s", pe.Line, pe.Message)
//	    }
//	    log.Fatal(err)
//	}
//	for _, item := range doc.Paths {
//	    for _, op := range item.Operations {
//	        fmt.Println(op.Method, item.Template, op.OperationID)
//	    }
//	}
//
// The loader performs no semantic validation: duplicate operation ids and
// malformed templates are reported by schemaindex.Build.
package contract
