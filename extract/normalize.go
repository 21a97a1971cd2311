package extract

import (
	"fmt"
	"slices"

	gojson "github.com/goccy/go-json"
	"github.com/poiesic/wikidump/core"
)

// strippedKeys are removed at every depth of a normalized claim.
var strippedKeys = map[string]struct{}{
	"hash":             {},
	"property":         {},
	"numeric-id":       {},
	"qualifiers-order": {},
}

// Claim is the stored form of a statement.
type Claim struct {
	Mainsnak   Snak              `json:"mainsnak"`
	Qualifiers map[string][]Snak `json:"qualifiers"`
	Rank       string            `json:"rank"`
}

// Snak is the stored form of a snak. The property is implied by the map key
// it is stored under.
type Snak struct {
	Snaktype  string          `json:"snaktype,omitempty"`
	Datatype  string          `json:"datatype,omitempty"`
	Datavalue *core.DataValue `json:"datavalue,omitempty"`
}

// IsCorpusLinked reports whether e has a sitelink to the language's
// Wikipedia and both a label and a description in language or "mul".
func IsCorpusLinked(e *core.Entity, language string) bool {
	if e == nil {
		return false
	}
	if _, ok := e.Sitelinks[language+"wiki"]; !ok {
		return false
	}
	return hasLanguage(e.Labels, language) && hasLanguage(e.Descriptions, language)
}

func hasLanguage(values map[string]core.LangValue, language string) bool {
	if _, ok := values[language]; ok {
		return true
	}
	_, ok := values[core.MultilingualCode]
	return ok
}

// NormalizeEntity reduces e to its persisted form in language.
func NormalizeEntity(e *core.Entity, language string) (*core.EntityRecord, error) {
	claims, err := normalizeClaims(e.Claims)
	if err != nil {
		return nil, fmt.Errorf("normalize claims of %s: %w", e.ID, err)
	}
	return &core.EntityRecord{
		ID:          e.ID,
		Label:       pickValue(e.Labels, language),
		Description: pickValue(e.Descriptions, language),
		Aliases:     mergeAliases(e.Aliases, language),
		Claims:      claims,
		Modified:    e.Modified,
	}, nil
}

func pickValue(values map[string]core.LangValue, language string) string {
	if v, ok := values[language]; ok {
		return v.Value
	}
	if v, ok := values[core.MultilingualCode]; ok {
		return v.Value
	}
	return ""
}

// mergeAliases returns the sorted union of the language and "mul" aliases.
func mergeAliases(aliases map[string][]core.LangValue, language string) []string {
	var out []string
	for _, code := range []string{language, core.MultilingualCode} {
		for _, v := range aliases[code] {
			out = append(out, v.Value)
		}
	}
	if len(out) == 0 {
		return []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeClaims(statements map[string][]core.Statement) (gojson.RawMessage, error) {
	claims := make(map[string][]Claim, len(statements))
	for pid, list := range statements {
		var kept []Claim
		for _, st := range list {
			if st.Type != "statement" || st.Rank == core.StatementRankDeprecated {
				continue
			}
			c := Claim{Rank: st.Rank, Qualifiers: make(map[string][]Snak, len(st.Qualifiers))}
			if st.Mainsnak != nil {
				s, err := normalizeSnak(*st.Mainsnak)
				if err != nil {
					return nil, err
				}
				c.Mainsnak = s
			}
			for qpid, snaks := range st.Qualifiers {
				out := make([]Snak, 0, len(snaks))
				for _, q := range snaks {
					s, err := normalizeSnak(q)
					if err != nil {
						return nil, err
					}
					out = append(out, s)
				}
				c.Qualifiers[qpid] = out
			}
			kept = append(kept, c)
		}
		if len(kept) > 0 {
			claims[pid] = kept
		}
	}
	return gojson.Marshal(claims)
}

func normalizeSnak(s core.Snak) (Snak, error) {
	out := Snak{Snaktype: s.Snaktype, Datatype: s.Datatype}
	if s.Datavalue == nil {
		return out, nil
	}
	dv := &core.DataValue{Type: s.Datavalue.Type}
	if len(s.Datavalue.Value) > 0 {
		var v any
		if err := gojson.Unmarshal(s.Datavalue.Value, &v); err != nil {
			return Snak{}, err
		}
		raw, err := gojson.Marshal(stripKeys(v))
		if err != nil {
			return Snak{}, err
		}
		dv.Value = raw
	}
	out.Datavalue = dv
	return out, nil
}

func stripKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, drop := strippedKeys[k]; drop {
				delete(t, k)
				continue
			}
			t[k] = stripKeys(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = stripKeys(child)
		}
		return t
	}
	return v
}
