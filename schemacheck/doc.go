// Package schemacheck checks JSON values against JSON-Schema fragments.
//
// It adapts github.com/santhosh-tekuri/jsonschema/v6 to the flat failure list
// the request validator reports: each Failure names the offending property,
// the keyword that failed and an English message. Format assertions are on,
// so "date-time", "uri" and friends are enforced, as are the OpenAPI
// "int32" and "int64" formats.
//
//	engine, _ := schemacheck.New()
//	checker, err := engine.Compile(contract.Schema{"type": "integer", "minimum": 1})
//	if err != nil {
//	    return err
//	}
//	for _, f := range checker.Check(json.Number("0")) {
//	    fmt.Println(f.Property, f.Constraint, f.Message)
//	}
//
// Compiled Checkers are immutable and safe for concurrent use.
package schemacheck
