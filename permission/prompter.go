package permission

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/modarc-dev/modarc/values"
)

// Decision is the outcome of a permission prompt.
type Decision int

const (
	// DecisionDeny refuses the action.
	DecisionDeny Decision = iota
	// DecisionAllowOnce grants the action for this session only.
	DecisionAllowOnce
	// DecisionAllowAlways grants the action and persists the grant.
	DecisionAllowAlways
)

// Prompter asks the user to decide on a permission request.
type Prompter interface {
	IsInteractive() bool
	Prompt(action values.Action, resource string) (Decision, error)
}

// TerminalPrompter prompts on the controlling terminal.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Prompt asks the user to allow or deny the action.
func (p *TerminalPrompter) Prompt(action values.Action, resource string) (Decision, error) {
	const (
		optionOnce   = "Yes, allow this time"
		optionAlways = "Always allow (save to config)"
		optionDeny   = "No, deny"
	)

	desc := fmt.Sprintf("Allow %s?", action)
	if resource != "" {
		desc = fmt.Sprintf("Allow %s for %s?", action, resource)
	}

	var selection string
	err := huh.NewSelect[string]().
		Title("Permission Required").
		Description(desc).
		Options(
			huh.NewOption(optionOnce, optionOnce),
			huh.NewOption(optionAlways, optionAlways),
			huh.NewOption(optionDeny, optionDeny),
		).
		Value(&selection).
		Run()
	if err != nil {
		return DecisionDeny, err
	}

	switch selection {
	case optionOnce:
		return DecisionAllowOnce, nil
	case optionAlways:
		return DecisionAllowAlways, nil
	default:
		return DecisionDeny, nil
	}
}

var _ Prompter = (*TerminalPrompter)(nil)
