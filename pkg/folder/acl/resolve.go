package acl

// Resolve computes the effective permission of a principal over a set of
// stored entries.
//
// The algorithm:
//  1. If moduleAllowed is false (the folder's module is outside the
//     principal's capability mask) the result is NoAccess regardless of
//     entries. Fails closed.
//  2. Among entries whose subject equals the principal directly, or equals
//     a group the principal belongs to, take the pointwise maximum of each
//     of the four levels and OR the admin flag.
//
// Resolution is a pure max-fold: it never errors and yields NoAccess on
// empty or non-matching input. The private-folder restriction (only the
// owner may hold rights on private nodes) is an invariant enforced by the
// mutation validator before entries are persisted, so it is deliberately
// not re-checked here.
func Resolve(entries []Entry, p Principal, moduleAllowed bool) Effective {
	if !moduleAllowed {
		return NoAccess
	}

	var eff Effective
	for i := range entries {
		entry := &entries[i]
		if !entryApplies(entry, p) {
			continue
		}

		if entry.Folder > eff.Folder {
			eff.Folder = entry.Folder
		}
		if entry.Read > eff.Read {
			eff.Read = entry.Read
		}
		if entry.Write > eff.Write {
			eff.Write = entry.Write
		}
		if entry.Delete > eff.Delete {
			eff.Delete = entry.Delete
		}
		eff.Admin = eff.Admin || entry.Admin
	}
	return eff
}

// entryApplies checks whether an entry's subject matches the principal,
// either directly or via group membership. A group entry whose group the
// principal does not belong to contributes nothing; a group that no longer
// resolves degrades to the same outcome because the caller supplies the
// membership list.
func entryApplies(entry *Entry, p Principal) bool {
	if entry.Group {
		return p.Member(entry.Subject)
	}
	return entry.Subject == p.UserID
}
