package blood

import (
	"strings"

	"github.com/pkg/errors"
)

// Group is one of the eight ABO/Rh blood groups.
type Group string

const (
	APos  Group = "A+"
	ANeg  Group = "A-"
	BPos  Group = "B+"
	BNeg  Group = "B-"
	ABPos Group = "AB+"
	ABNeg Group = "AB-"
	OPos  Group = "O+"
	ONeg  Group = "O-"
)

// ErrUnknownGroup is returned by ParseGroup for anything outside the eight groups.
var ErrUnknownGroup = errors.New("unknown blood group")

// Groups lists every blood group in a stable order.
var Groups = []Group{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// ParseGroup normalises s ("ab+", " O- ") into a Group.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", errors.Wrapf(ErrUnknownGroup, "%q", s)
	}
	return g, nil
}

// Valid reports whether g is one of the eight groups.
func (g Group) Valid() bool {
	_, ok := donorsFor[g]
	return ok
}

func (g Group) String() string { return string(g) }
