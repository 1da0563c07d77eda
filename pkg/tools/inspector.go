package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inspection/pkg/domain"
)

// collectInspectorInfoTool resolves inspector identity from a name and
// phone number pair. Both must match an existing record; it never creates
// one, so a typo'd phone fails closed instead of forking an identity.
type collectInspectorInfoTool struct {
	env *Env
}

// NewCollectInspectorInfoTool builds the collect_inspector_info tool.
func NewCollectInspectorInfoTool(env *Env) Tool {
	return &collectInspectorInfoTool{env: env}
}

func (t *collectInspectorInfoTool) Name() string { return "collect_inspector_info" }

func (t *collectInspectorInfoTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Identify the inspector from their full name and mobile number. Both must match an existing inspector record.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"name":  {Type: "string", Description: "Inspector full name"},
				"phone": {Type: "string", Description: "Inspector mobile number"},
			},
			Required: []string{"name", "phone"},
		},
	}
}

func (t *collectInspectorInfoTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	_, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	name := strings.TrimSpace(stringArg(args, "name"))
	phone := strings.TrimSpace(stringArg(args, "phone"))
	if name == "" || phone == "" {
		return Failf("Please give me both your full name and your mobile number."), nil
	}

	normalized := NormalizePhone(phone, t.env.CountryCode)
	if normalized == "" {
		return Failf("That doesn't look like a phone number. Please send your mobile number, e.g. 91234567."), nil
	}

	insp, err := t.env.Domain.InspectorByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Failf("I couldn't find an inspector with that name and number. Please check them, or contact an administrator."), nil
		}
		return Result{}, fmt.Errorf("failed to look up inspector: %w", err)
	}

	// The phone matched a record; the name must match it too. A phone-only
	// match is not enough to adopt an identity.
	if !strings.EqualFold(strings.TrimSpace(insp.Name), name) {
		return Failf("I couldn't find an inspector with that name and number. Please check them, or contact an administrator."), nil
	}

	t.env.rememberInspector(ctx, sessionID, insp)
	return OK(map[string]any{
		"inspectorId": insp.ID,
		"message":     fmt.Sprintf("Thanks %s, you're identified. Ask me for today's jobs to get started.", insp.Name),
	}), nil
}
