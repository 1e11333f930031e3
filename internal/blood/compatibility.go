package blood

// donorsFor maps a recipient group to the donor groups whose red cells it can
// safely receive.
var donorsFor = map[Group][]Group{
	ONeg:  {ONeg},
	OPos:  {OPos, ONeg},
	ANeg:  {ANeg, ONeg},
	APos:  {APos, ANeg, OPos, ONeg},
	BNeg:  {BNeg, ONeg},
	BPos:  {BPos, BNeg, OPos, ONeg},
	ABNeg: {ABNeg, ANeg, BNeg, ONeg},
	ABPos: {ABPos, ABNeg, APos, ANeg, BPos, BNeg, OPos, ONeg},
}

// CompatibleDonorGroups returns the donor groups that can supply a recipient
// of the requested group, the requested group first. Unknown groups yield an
// empty slice.
func CompatibleDonorGroups(requested Group) []Group {
	src := donorsFor[requested]
	out := make([]Group, len(src))
	copy(out, src)
	return out
}

// CompatibleRecipientGroups is the inverse of CompatibleDonorGroups: the
// recipient groups that can receive blood from donor.
func CompatibleRecipientGroups(donor Group) []Group {
	var out []Group
	for _, recipient := range Groups {
		if CanDonate(donor, recipient) {
			out = append(out, recipient)
		}
	}
	return out
}

// CanDonate reports whether donor blood can be transfused into recipient.
func CanDonate(donor, recipient Group) bool {
	for _, g := range donorsFor[recipient] {
		if g == donor {
			return true
		}
	}
	return false
}
