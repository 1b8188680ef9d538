package pdc

import "fmt"

// checkExhaustive validates a match's arm set against an enum's declared
// variants : every variant not covered by a catch-all
// pattern must appear in exactly one arm (a variant named twice makes
// the second occurrence unreachable), and a catch-all arm followed by
// more arms makes those later arms unreachable too.
func checkExhaustive(en *Enum, arms []MatchArm, matchSpan Span) error {
	seen := make(map[string]bool, len(en.Variants))
	catchAllSeen := false

	for _, arm := range arms {
		if catchAllSeen {
			return &Diagnostic{Kind: KindUnreachablePattern, Message: "unreachable match arm: a previous arm already matches every remaining case", Span: arm.sp}
		}
		if IsCatchAll(arm.Pattern) {
			catchAllSeen = true
			continue
		}
		ep, ok := arm.Pattern.(*EnumPattern)
		if !ok {
			continue
		}
		if seen[ep.Variant] {
			return &Diagnostic{Kind: KindUnreachablePattern, Message: fmt.Sprintf("variant `%s::%s` is already covered by an earlier arm", en.NameV, ep.Variant), Span: arm.sp}
		}
		seen[ep.Variant] = true
	}

	if catchAllSeen {
		return nil
	}
	var missing []string
	for _, v := range en.Variants {
		if !seen[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		return &Diagnostic{
			Kind: KindNonExhaustiveMatch,
			Message: fmt.Sprintf("match on `%s` does not cover variant(s): %v", en.NameV, missing),
			Span: matchSpan,
		}
	}
	return nil
}
