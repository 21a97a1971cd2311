package extract

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/ingestion"
	"github.com/poiesic/wikidump/storage"
)

// Pass names used as checkpoint keys.
const (
	PassIdentifiers = "ids"
	PassEntities    = "entities"
	PassLabels      = "labels"
)

// IdentifierPass returns the handler of the identifier pass.
//
// A corpus-linked record yields its own identifier with InCorpus set, every
// claim and qualifier property, and every identifier referenced by claim and
// qualifier values. Other records yield nothing.
func IdentifierPass(language string) ingestion.Handler[core.IdentifierRecord] {
	return func(_ context.Context, e *core.Entity) []core.IdentifierRecord {
		if !IsCorpusLinked(e, language) {
			return nil
		}
		c := newCollector()
		c.add(core.IdentifierRecord{ID: e.ID, InCorpus: true, IsProperty: core.IsPropertyID(e.ID)})
		for _, pid := range sortedKeys(e.Claims) {
			c.addProperty(pid)
			for _, st := range e.Claims[pid] {
				c.addSnak(st.Mainsnak)
				for _, qpid := range sortedKeys(st.Qualifiers) {
					c.addProperty(qpid)
					for i := range st.Qualifiers[qpid] {
						c.addSnak(&st.Qualifiers[qpid][i])
					}
				}
			}
		}
		return c.records
	}
}

// EntityPass returns the handler of the entity pass. Records whose identifier
// was not indexed by the identifier pass yield nothing.
func EntityPass(language string, ids storage.IdentifierRepository, logger *slog.Logger) ingestion.Handler[*core.EntityRecord] {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "entity_pass")
	return func(ctx context.Context, e *core.Entity) []*core.EntityRecord {
		if e == nil {
			return nil
		}
		known, err := ids.Exists(ctx, e.ID)
		if err != nil {
			// The entity store drops unknown identifiers on write.
			logger.Warn("identifier lookup failed", "id", e.ID, "error", err)
			known = true
		}
		if !known {
			return nil
		}
		record, err := NormalizeEntity(e, language)
		if err != nil {
			logger.Warn("entity skipped", "id", e.ID, "error", err)
			return nil
		}
		return []*core.EntityRecord{record}
	}
}

// LabelPass returns the handler of the label pass. Every parseable record
// yields its labels and descriptions in all languages, whether or not it is
// part of the corpus.
func LabelPass() ingestion.Handler[*core.LabelRecord] {
	return func(_ context.Context, e *core.Entity) []*core.LabelRecord {
		if e == nil {
			return nil
		}
		return []*core.LabelRecord{{
			ID:           e.ID,
			Labels:       languageValues(e.Labels),
			Descriptions: languageValues(e.Descriptions),
			InWikipedia:  hasWikiSitelink(e),
		}}
	}
}

func languageValues(values map[string]core.LangValue) map[string]string {
	out := make(map[string]string, len(values))
	for lang, v := range values {
		out[lang] = v.Value
	}
	return out
}

// hasWikiSitelink reports whether any sitelink points at a "*wiki" site.
func hasWikiSitelink(e *core.Entity) bool {
	for site := range e.Sitelinks {
		if strings.HasSuffix(site, "wiki") {
			return true
		}
	}
	return false
}

// ReferencedIDs returns the identifiers referenced by stored claims: claim
// and qualifier properties plus entity and unit values. Each identifier
// appears once, in first-seen order over sorted property keys.
func ReferencedIDs(claims gojson.RawMessage) ([]string, error) {
	if len(claims) == 0 {
		return nil, nil
	}
	var stored map[string][]struct {
		Mainsnak   *core.Snak             `json:"mainsnak"`
		Qualifiers map[string][]core.Snak `json:"qualifiers"`
	}
	if err := gojson.Unmarshal(claims, &stored); err != nil {
		return nil, err
	}
	c := newCollector()
	for _, pid := range sortedKeys(stored) {
		c.addProperty(pid)
		for _, st := range stored[pid] {
			c.addSnak(st.Mainsnak)
			for _, qpid := range sortedKeys(st.Qualifiers) {
				c.addProperty(qpid)
				for i := range st.Qualifiers[qpid] {
					c.addSnak(&st.Qualifiers[qpid][i])
				}
			}
		}
	}
	out := make([]string, len(c.records))
	for i, r := range c.records {
		out[i] = r.ID
	}
	return out, nil
}

// collector gathers identifier records, merging duplicates in place.
type collector struct {
	records []core.IdentifierRecord
	index   map[string]int
}

func newCollector() *collector {
	return &collector{index: make(map[string]int)}
}

func (c *collector) add(r core.IdentifierRecord) {
	if i, ok := c.index[r.ID]; ok {
		c.records[i].Merge(r)
		return
	}
	c.index[r.ID] = len(c.records)
	c.records = append(c.records, r)
}

func (c *collector) addProperty(pid string) {
	c.add(core.IdentifierRecord{ID: pid, IsProperty: true})
}

func (c *collector) addSnak(s *core.Snak) {
	if id, isProperty, ok := s.ReferencedID(); ok {
		c.add(core.IdentifierRecord{ID: id, IsProperty: isProperty})
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
