// Package score provides the document object model shared by every format
// handler and by the merge engine.
//
// A Document is an arena of Nodes. Each node has a stable ID, a Kind drawn
// from a closed enumeration and an ordered list of child IDs; the parent
// relation is kept in a separate index owned by the Document and is updated
// in the same call that edits a child list. A node therefore always has at
// most one parent, and a detached node never keeps a stale parent reference.
//
// # Containment
//
// Parsers produce trees of the shape
//
//	document
//	  page
//	    system
//	      measure
//	        staff
//	          layer
//	            note | rest | beam
//
// with notes optionally owning verse children. The critical-apparatus triad
// (app, lem, rdg) may replace a verse under a note after a merge.
//
// # Ownership
//
// NewNode returns a detached node owned by the caller. AddChild and
// InsertChild hand ownership to a parent; DetachChildAt is the only way to
// take it back. Discard destroys a detached subtree; Adopt moves a detached
// subtree from another Document's arena into this one.
//
// # Example
//
//	doc := score.NewDocument()
//	page := doc.NewNode(score.KindPage)
//	_ = doc.Root().AddChild(page)
//
//	note := doc.NewNode(score.KindNote)
//	note.Duration = score.Duration{Base: score.DurQuarter}
//	note.Pitch = score.Pitch{Step: score.StepC, Octave: 4}
package score
