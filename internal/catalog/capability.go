package catalog

// optionProbeSuffixes defines the attribute lookup order used to find the
// legal values for a service field. The order is load-bearing: device
// integrations name their option attributes inconsistently ("fan_modes",
// "preset_mode_list", ...) and the first present list-typed attribute wins.
// No merging across keys.
var optionProbeSuffixes = []string{"", "s", "_list", "es"}

// Resolve computes the services an entity may invoke given its domain,
// supported-feature mask and attributes. services must be the catalog's
// service list for that domain, in declared order; the result preserves
// that order. A nil or empty service list (unknown domain) yields an
// empty result, never an error.
func Resolve(domain string, features uint64, services []Service, attrs map[string]any) []ResolvedService {
	resolved := make([]ResolvedService, 0, len(services))

	for _, svc := range services {
		if !serviceSupported(domain, features, svc) {
			continue
		}

		rs := ResolvedService{Service: svc.Name}
		for _, f := range svc.Fields {
			if f.Aggregate() {
				// Advanced fields recurse exactly one level.
				for _, sub := range f.Fields {
					if filterPasses(sub.Filter, features) {
						rs.Options = append(rs.Options, OptionSet{
							Field:  sub.Name,
							Values: probeOptions(sub.Name, attrs),
						})
					}
				}
				continue
			}
			if filterPasses(f.Filter, features) {
				rs.Options = append(rs.Options, OptionSet{
					Field:  f.Name,
					Values: probeOptions(f.Name, attrs),
				})
			}
		}
		resolved = append(resolved, rs)
	}

	return resolved
}

// serviceSupported applies the target feature gates. A service with no
// target filters for the domain is always supported; otherwise every bit
// group on every applicable target must intersect the entity's mask.
func serviceSupported(domain string, features uint64, svc Service) bool {
	for _, target := range svc.Targets {
		if target.Domain != domain {
			continue
		}
		for _, group := range target.Features {
			if features&group == 0 {
				return false
			}
		}
	}
	return true
}

// filterPasses checks a field-level feature filter. An absent filter
// always passes.
func filterPasses(filter []uint64, features uint64) bool {
	for _, group := range filter {
		if features&group == 0 {
			return false
		}
	}
	return true
}

// probeOptions looks up the legal values for a field by probing the
// attribute keys name, name+"s", name+"_list", name+"es" in that order.
// The first key holding a list wins; non-list values are skipped. An
// absent option source yields an empty list.
func probeOptions(name string, attrs map[string]any) []any {
	for _, suffix := range optionProbeSuffixes {
		val, ok := attrs[name+suffix]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case []any:
			return v
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out
		}
	}
	return []any{}
}
