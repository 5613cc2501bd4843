package score

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// ContentHash computes the BLAKE3 hash of a subtree's musical content.
// Node IDs do not take part, so two independently parsed encodings of the
// same music hash equal.
func ContentHash(n *Node) string {
	h := blake3.New()
	writeCanonical(h, n)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash computes the BLAKE3 hash of the staff declarations and the
// whole tree.
func DocumentHash(d *Document) string {
	h := blake3.New()
	for _, def := range d.StaffGroup.Defs {
		fmt.Fprintf(h, "staffDef(%d,%q,%d,%q)", def.N, def.Label, def.Lines, def.Clef)
	}
	writeCanonical(h, d.Root())
	return hex.EncodeToString(h.Sum(nil))
}

func writeCanonical(w io.Writer, n *Node) {
	fmt.Fprintf(w, "(%s", n.kind)
	switch n.kind {
	case KindMeasure, KindStaff, KindLayer:
		fmt.Fprintf(w, " n=%d", n.N)
	case KindNote:
		fmt.Fprintf(w, " dur=%s pitch=%s", n.Duration, n.Pitch)
	case KindRest:
		fmt.Fprintf(w, " dur=%s", n.Duration)
	case KindVerse:
		fmt.Fprintf(w, " n=%d text=%q", n.N, n.Text)
	case KindAlternativeGroup:
		fmt.Fprintf(w, " scope=%s", n.Scope)
	case KindPreferredReading, KindAlternateReading:
		fmt.Fprintf(w, " source=%q", n.Source)
	}
	for _, c := range n.Children() {
		writeCanonical(w, c)
	}
	io.WriteString(w, ")")
}
