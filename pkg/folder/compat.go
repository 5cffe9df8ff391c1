package folder

// Structural compatibility tables. These are fixed: a child's type and
// module are constrained by its parent, both at create and at move time.

// childTypeAllowed reports whether a node of type childType may sit below
// the given parent.
//
// The rules:
//   - Private and Public parents admit only their own type.
//   - Shared nodes are never a parent for new structure.
//   - System parents admit Private or Public depending on which system
//     root they are: the private root admits Private, the public and
//     infostore roots admit Public, every other system node admits
//     nothing.
func childTypeAllowed(parent *Node, childType Type) bool {
	switch parent.Type {
	case TypePrivate:
		return childType == TypePrivate
	case TypePublic:
		return childType == TypePublic
	case TypeShared:
		return false
	case TypeSystem:
		switch parent.ID {
		case PrivateRootID:
			return childType == TypePrivate
		case PublicRootID, InfostoreRootID:
			return childType == TypePublic
		default:
			return false
		}
	default:
		return false
	}
}

// groupwareModules are the modules that freely nest among each other.
// Unbound folders act as structure between them.
var groupwareModules = NewModuleSet(ModuleTask, ModuleCalendar, ModuleContact, ModuleUnbound)

// childModuleAllowed reports whether a node of module childModule may sit
// below the given parent.
//
// The rules:
//   - Task, Calendar, Contact and Unbound parents admit those four.
//   - Document parents admit only Document children.
//   - The infostore root is module-bound: Document only. The private and
//     public roots admit any non-system module.
func childModuleAllowed(parent *Node, childModule Module) bool {
	if childModule == ModuleSystem {
		return false
	}

	switch parent.Module {
	case ModuleTask, ModuleCalendar, ModuleContact, ModuleUnbound:
		return groupwareModules.Contains(childModule)
	case ModuleDocument:
		return childModule == ModuleDocument
	case ModuleSystem:
		switch parent.ID {
		case InfostoreRootID:
			return childModule == ModuleDocument
		case PrivateRootID, PublicRootID:
			return true
		default:
			return false
		}
	default:
		return false
	}
}
