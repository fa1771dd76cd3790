// Package uritemplate expands path templates for the request builder.
//
// Two expanders are provided. [RFC6570] implements RFC 6570 on top of
// github.com/yosida95/uritemplate and can also extract variables from a
// concrete path. [Simple] only substitutes "{name}" placeholders, which
// covers contracts whose variable names fall outside the RFC 6570 grammar.
//
//	e := uritemplate.NewRFC6570()
//	path, _ := e.Expand("/foos/{id}", map[string]string{"id": "1"}) // "/foos/1"
//	vars, _ := e.Extract("/foos/{id}", path)                      // {"id": "1"}
package uritemplate
