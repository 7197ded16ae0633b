// Package query drives paginated source listings and bounded fan-out.
//
// [FetchAll] turns a paginated operation into one deferred [Op] per page after discovering the page
// count from page 1. [RunChunked] executes a slice of operations in consecutive groups, each group
// fully concurrent, reporting progress after every group. Failed operations become failed [Result]
// values in place and never abort the run.
package query
