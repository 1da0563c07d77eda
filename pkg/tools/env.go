package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"inspection/pkg/domain"
	"inspection/pkg/logx"
	"inspection/pkg/session"
)

// Env carries the shared collaborators every tool needs. One Env is built at
// startup and injected into each tool constructor; there are no process
// globals.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Env struct {
	Sessions    session.Store
	Domain      domain.Access
	CountryCode string // default country code for phone normalization, e.g. "+65"
	Logger      *logx.Logger
}

// NewEnv builds a tool environment.
func NewEnv(sessions session.Store, access domain.Access, countryCode string) *Env {
	if countryCode == "" {
		countryCode = "+65"
	}
	return &Env{
		Sessions:    sessions,
		Domain:      access,
		CountryCode: countryCode,
		Logger:      logx.NewLogger("tools"),
	}
}

// state loads the session state for the current call.
func (e *Env) state(ctx context.Context) (session.State, string, error) {
	sessionID := SessionIDFromContext(ctx)
	if sessionID == "" {
		return session.State{}, "", fmt.Errorf("no session id on context")
	}
	st, err := e.Sessions.Get(ctx, sessionID)
	if err != nil {
		return session.State{}, "", fmt.Errorf("failed to load session: %w", err)
	}
	return st, sessionID, nil
}

// merge applies a patch to the current session.
func (e *Env) merge(ctx context.Context, sessionID string, patch session.Patch) error {
	if err := e.Sessions.Merge(ctx, sessionID, patch); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// nowUTC is the timestamp stamped onto menu breadcrumbs.
func nowUTC() time.Time {
	return time.Now().UTC()
}

// phoneLike matches something usable as a phone number: optional +, 8-15
// digits.
var phoneLike = regexp.MustCompile(`^\+?\d{8,15}$`)

// looksLikePhone reports whether a session id can double as a phone number.
func looksLikePhone(s string) bool {
	return phoneLike.MatchString(strings.TrimSpace(s))
}

// NormalizePhone converts a raw phone string to E.164-ish form, prefixing
// the default country code when the number has no international prefix.
func NormalizePhone(raw, countryCode string) string {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	num := digits.String()
	if num == "" {
		return ""
	}
	if hasPlus {
		return "+" + num
	}

	cc := strings.TrimPrefix(countryCode, "+")
	// A bare number already starting with the country code is treated as
	// international; a shorter local number gets the code prepended.
	if strings.HasPrefix(num, cc) && len(num) > len(cc)+4 {
		return "+" + num
	}
	return "+" + cc + num
}

// PhoneVariants returns the acceptable stored forms of a normalized phone:
// with and without the leading '+'.
func PhoneVariants(normalized string) []string {
	bare := strings.TrimPrefix(normalized, "+")
	return []string{"+" + bare, bare}
}

// resolveInspector resolves inspector identity in priority order: session,
// explicit args, phone lookup, name lookup. It merges newly resolved
// identity into the session so later turns skip the lookup.
func (e *Env) resolveInspector(ctx context.Context, sessionID string, st *session.State, args map[string]any) (domain.Inspector, bool) {
	if st.InspectorID != "" {
		return domain.Inspector{ID: st.InspectorID, Name: st.InspectorName, MobilePhone: st.InspectorPhone}, true
	}
	if id := stringArg(args, "inspectorId"); id != "" {
		return domain.Inspector{ID: id}, true
	}

	phone := stringArg(args, "inspectorPhone")
	if phone == "" {
		phone = st.InspectorPhone
	}
	if phone == "" && looksLikePhone(sessionID) {
		phone = sessionID
	}
	if phone != "" {
		normalized := NormalizePhone(phone, e.CountryCode)
		insp, err := e.Domain.InspectorByPhone(ctx, normalized)
		if err == nil {
			e.rememberInspector(ctx, sessionID, insp)
			return insp, true
		}
		if !errors.Is(err, domain.ErrNotFound) {
			e.Logger.Warn("inspector phone lookup failed: %v", err)
		}
	}

	if name := stringArg(args, "inspectorName"); name != "" {
		insp, err := e.Domain.InspectorByName(ctx, name)
		if err == nil {
			e.rememberInspector(ctx, sessionID, insp)
			return insp, true
		}
		if !errors.Is(err, domain.ErrNotFound) {
			e.Logger.Warn("inspector name lookup failed: %v", err)
		}
	}

	return domain.Inspector{}, false
}

func (e *Env) rememberInspector(ctx context.Context, sessionID string, insp domain.Inspector) {
	if err := e.merge(ctx, sessionID, session.Patch{
		session.FieldInspectorID:    insp.ID,
		session.FieldInspectorName:  insp.Name,
		session.FieldInspectorPhone: insp.MobilePhone,
	}); err != nil {
		e.Logger.Warn("failed to persist inspector identity: %v", err)
	}
}

// resolveJobID resolves a raw job reference robustly: an existing work order
// id is used as-is; a bare ordinal is re-resolved against a fresh listing of
// today's jobs. A stale or out-of-range reference yields an error, never a
// wrong job.
func (e *Env) resolveJobID(ctx context.Context, inspectorID, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("no job selected")
	}

	if _, err := e.Domain.WorkOrderByID(ctx, raw); err == nil {
		return raw, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	ordinal, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return "", fmt.Errorf("job %q not found", raw)
	}
	jobs, err := e.Domain.TodayJobsForInspector(ctx, inspectorID)
	if err != nil {
		return "", err
	}
	if ordinal < 1 || ordinal > len(jobs) {
		return "", fmt.Errorf("job selection %d is out of range (1-%d)", ordinal, len(jobs))
	}
	return jobs[ordinal-1].ID, nil
}

// postalCodePattern extracts a 6-digit Singapore postal code from an
// address.
var postalCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// ExtractPostalCode pulls a 6-digit postal code out of an address, or
// "unknown" when none is present.
func ExtractPostalCode(address string) string {
	if m := postalCodePattern.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return "unknown"
}
