package detect

// Confirmer asks the operator to approve a destructive action.
// It returns true only on explicit approval.
type Confirmer func(prompt string) bool

// Never declines every action. It is the default when no Confirmer is given.
func Never(string) bool { return false }

// Always approves every action, for non-interactive runs with --yes.
func Always(string) bool { return true }
