package tools

import (
	"fmt"
	"strings"

	"inspection/pkg/domain"
	"inspection/pkg/session"
	"inspection/pkg/taskflow"
)

// Menu rendering. Every numbered menu in the system goes through these
// helpers so the ordinal-to-identity mapping is identical no matter which
// path rendered it: lines are `[n] label`, completed items get a trailing
// `(Done)` rather than being removed, synthesized options are always last,
// and the reply closes with a blank line and a `Next:` instruction.

// MenuOption is one renderable line.
type MenuOption struct {
	Label string
	Done  bool
}

// RenderMenu renders numbered options plus optional trailing synthesized
// options (already labelled), followed by the Next instruction.
func RenderMenu(header string, options []MenuOption, trailing []string, next string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	n := 0
	for _, opt := range options {
		n++
		b.WriteString(fmt.Sprintf("[%d] %s", n, opt.Label))
		if opt.Done {
			b.WriteString(" (Done)")
		}
		b.WriteString("\n")
	}
	for _, label := range trailing {
		n++
		b.WriteString(fmt.Sprintf("[%d] %s\n", n, label))
	}
	b.WriteString("\n")
	b.WriteString("Next: ")
	b.WriteString(next)
	return b.String()
}

// GoBackLabel is the synthesized trailing navigation option.
const GoBackLabel = "Go back"

// JobOptions converts a job list into menu options.
func JobOptions(jobs []domain.JobSummary) []MenuOption {
	opts := make([]MenuOption, len(jobs))
	for i, j := range jobs {
		label := j.PropertyAddress
		if j.CustomerName != "" {
			label += " — " + j.CustomerName
		}
		if j.ScheduledDate != "" {
			label += fmt.Sprintf(" (%s)", j.ScheduledDate)
		}
		opts[i] = MenuOption{Label: label, Done: j.Status == domain.WorkOrderCompleted}
	}
	return opts
}

// LocationOptions converts a location list into menu options.
func LocationOptions(locations []domain.LocationStatus) []MenuOption {
	opts := make([]MenuOption, len(locations))
	for i, loc := range locations {
		label := loc.DisplayName
		if loc.TotalTasks > 0 {
			label += fmt.Sprintf(" — %d/%d tasks", loc.CompletedTasks, loc.TotalTasks)
		}
		opts[i] = MenuOption{Label: label, Done: loc.IsCompleted}
	}
	return opts
}

// SubLocationOptions converts cached sub-location refs into menu options.
func SubLocationOptions(subs []session.SubLocationRef) []MenuOption {
	opts := make([]MenuOption, len(subs))
	for i, sub := range subs {
		label := sub.Name
		if sub.TotalTasks > 0 {
			label += fmt.Sprintf(" — %d/%d tasks", sub.CompletedTasks, sub.TotalTasks)
		}
		opts[i] = MenuOption{Label: label, Done: sub.Status == domain.StatusCompleted}
	}
	return opts
}

// TaskOptions converts a task list into menu options.
func TaskOptions(tasks []domain.Task) []MenuOption {
	opts := make([]MenuOption, len(tasks))
	for i, t := range tasks {
		opts[i] = MenuOption{Label: t.Action, Done: t.Status == domain.StatusCompleted}
	}
	return opts
}

// Stage prompts. Guard branches re-render these verbatim, so each prompt is
// defined exactly once.

// ConditionPrompt asks for the 1-5 condition rating.
func ConditionPrompt(taskName string) string {
	opts := make([]MenuOption, 0, 5)
	for _, c := range taskflow.ConditionChoices() {
		opts = append(opts, MenuOption{Label: c.Label()})
	}
	return RenderMenu(
		fmt.Sprintf("How is the condition for \"%s\"?", taskName),
		opts, nil,
		"Reply 1-5 to rate the condition.")
}

// CausePrompt asks for the fault cause.
func CausePrompt(condition taskflow.Condition) string {
	return fmt.Sprintf("What is the cause of the %s condition?\n\nNext: Describe the cause in a short sentence.",
		strings.ToLower(string(condition)))
}

// ResolutionPrompt asks for the recommended fix.
const ResolutionPrompt = "What is the recommended resolution?\n\nNext: Describe how this should be fixed."

// MediaPrompt asks for at least one photo. Conditions that need no photo
// never enter the media stage, so there is no skippable variant.
const MediaPrompt = "Please send at least one photo of this task.\n\nNext: Send a photo (or video) now."

// RemarksPrompt asks for optional remarks.
const RemarksPrompt = "Any remarks for this task?\n\nNext: Type your remarks, or reply \"skip\" for none."

// ConfirmTaskPrompt asks whether to mark the task complete.
func ConfirmTaskPrompt(taskName string) string {
	return RenderMenu(
		fmt.Sprintf("Ready to complete \"%s\"?", taskName),
		[]MenuOption{{Label: "Yes, mark it complete"}, {Label: "No, keep it in progress"}},
		nil,
		"Reply 1 or 2.")
}

// ConfirmJobPrompt renders the job confirmation question.
func ConfirmJobPrompt(wo *domain.WorkOrder, postalCode string) string {
	header := fmt.Sprintf("Please confirm this job:\n\nCustomer: %s\nAddress: %s\nPostal code: %s\nScheduled: %s",
		wo.CustomerName, wo.PropertyAddress, postalCode, wo.ScheduledStart)
	return RenderMenu(header,
		[]MenuOption{{Label: "Yes, start this job"}, {Label: "No, choose another job"}},
		nil,
		"Reply 1 to confirm or 2 to go back.")
}

// JobEditMenu renders the 5-option job edit sub-menu entered when the
// inspector declines the confirmation.
func JobEditMenu() string {
	return RenderMenu("What would you like to change?",
		[]MenuOption{
			{Label: "Customer name"},
			{Label: "Property address"},
			{Label: "Scheduled time"},
			{Label: "Job status"},
			{Label: "Back to job list"},
		},
		nil,
		"Reply 1-5.")
}
