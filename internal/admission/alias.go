package admission

import (
	"math/rand"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

const aliasLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// AliasRegistry tracks every alias in use cluster-wide so newly generated
// aliases (spec.md 3: `^[A-Z]{4}$`, globally unique) never collide with one
// already handed out to a probe.
type AliasRegistry struct {
	taken map[string]bool
}

// NewAliasRegistry returns an empty registry.
func NewAliasRegistry() *AliasRegistry {
	return &AliasRegistry{taken: map[string]bool{}}
}

// Reserve marks alias as in use, for aliases submitted by a caller rather
// than generated here.
func (r *AliasRegistry) Reserve(alias string) {
	r.taken[alias] = true
}

// Generate returns a fresh, globally-unique four-letter alias.
func (r *AliasRegistry) Generate() string {
	for {
		b := make([]byte, 4)
		for i := range b {
			b[i] = aliasLetters[rand.Intn(len(aliasLetters))]
		}
		alias := string(b)
		if r.taken[alias] {
			continue
		}
		r.taken[alias] = true
		return alias
	}
}

// AssignAliases fills in an alias for every probe of app that doesn't
// already carry a well-formed one (knowledge.ValidAlias), per spec.md 4.7
// "generates probe aliases"; a well-formed submitted alias is reserved as
// given.
func (r *AliasRegistry) AssignAliases(app *knowledge.Application) {
	for _, comp := range app.Components {
		for _, p := range comp.Probes {
			if p.Alias == "" || !knowledge.ValidAlias(p.Alias) {
				p.Alias = r.Generate()
			} else {
				r.Reserve(p.Alias)
			}
		}
	}
}
