// Package schema loads declarative table definitions written in CUE
// and materializes them into the store: tables, typed columns, and
// named views with sort/filter/hidden configuration.
//
// A schema file declares tables under a top-level "table" struct:
//
//	table: inventory: {
//		name: "Inventory"
//		columns: [
//			{name: "item", kind: "TEXT"},
//			{name: "qty", kind: "NUMBER", width: 120},
//		]
//		views: [
//			{name: "Low stock", filters: [{column: "qty", operator: "less_than", operand: "10"}]},
//		]
//	}
//
// Column and view rules reference columns by name; ids are assigned at
// apply time.
package schema
