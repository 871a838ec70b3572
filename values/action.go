package values

// Action names a privileged operation checked against the permission
// collaborator before the operation runs.
type Action string

const (
	// ActionCreateRepository guards repository construction.
	ActionCreateRepository Action = "create-repository"
	// ActionShutdownRepository guards closing repositories and the system.
	ActionShutdownRepository Action = "shutdown-repository"
	// ActionSetVisibilityPolicy guards replacing the visibility policy.
	ActionSetVisibilityPolicy Action = "set-visibility-policy"
	// ActionSetImportOverridePolicy guards replacing the import override policy.
	ActionSetImportOverridePolicy Action = "set-import-override-policy"
	// ActionListModules guards enumerating the archive cache.
	ActionListModules Action = "list-modules"
)

// String returns the action name.
func (a Action) String() string {
	return string(a)
}
