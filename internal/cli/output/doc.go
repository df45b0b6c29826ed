// Package output renders gridmesh-cli results as a table, JSON or YAML.
//
// Table rendering works on a *Table, a struct, a slice of structs or a
// map. Struct fields are labelled from their json tag; a `table:"-"` tag
// hides a field and `table:"wide"` shows it only in wide mode.
package output
