package score

// Kind identifies what a node represents. The set is closed; names follow
// the MEI element names.
type Kind string

// Kind constants.
const (
	KindDocument Kind = "document"
	KindPage     Kind = "page"
	KindSystem   Kind = "system"
	KindMeasure  Kind = "measure"
	KindStaff    Kind = "staff"
	KindLayer    Kind = "layer"
	KindNote     Kind = "note"
	KindRest     Kind = "rest"
	KindBeam     Kind = "beam"
	KindVerse    Kind = "verse"

	// KindAlternativeGroup marks a fork where sources disagree.
	KindAlternativeGroup Kind = "app"
	// KindPreferredReading holds the reading adopted by the edition.
	KindPreferredReading Kind = "lem"
	// KindAlternateReading holds a reading from another source.
	KindAlternateReading Kind = "rdg"
)

// validKinds is the set of valid node kinds.
var validKinds = map[Kind]bool{
	KindDocument:         true,
	KindPage:             true,
	KindSystem:           true,
	KindMeasure:          true,
	KindStaff:            true,
	KindLayer:            true,
	KindNote:             true,
	KindRest:             true,
	KindBeam:             true,
	KindVerse:            true,
	KindAlternativeGroup: true,
	KindPreferredReading: true,
	KindAlternateReading: true,
}

// IsValid returns true if the kind is part of the enumeration.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// IsEvent reports whether nodes of this kind occupy time in a layer.
func (k Kind) IsEvent() bool {
	return k == KindNote || k == KindRest
}

// IsReading reports whether k is one of the two reading kinds.
func (k Kind) IsReading() bool {
	return k == KindPreferredReading || k == KindAlternateReading
}
