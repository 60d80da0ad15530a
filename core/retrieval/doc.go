// Package retrieval indexes regulatory documents and answers similarity
// queries over their chunks. The Store rebuilds its index when the document
// directory changes and swaps it in atomically, so queries observe either the
// old or the new index and never a partial one.
package retrieval
