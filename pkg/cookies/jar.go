package cookies

import (
	"regexp"
	"sort"
	"strings"
)

// deletedValue matches the values servers use to expire a cookie.
var deletedValue = regexp.MustCompile(`(?i)deleted`)

// Jar is a name -> value session store. It only adds or overwrites entries:
// a Set-Cookie that looks like a deletion leaves the current entry alone.
// Attributes (Path, Domain, Expires, ...) are not tracked.
//
// A Jar belongs to a single job and is not safe for concurrent use.
type Jar struct {
	values map[string]string
	order  []string
}

// NewJar creates an empty jar
func NewJar() *Jar {
	return &Jar{values: make(map[string]string)}
}

// Absorb applies every Set-Cookie header value to the jar.
func (j *Jar) Absorb(setCookieHeaders []string) {
	for _, header := range setCookieHeaders {
		nameValue, _, _ := strings.Cut(header, ";")
		name, value, ok := splitPair(nameValue)
		if !ok || name == "" {
			continue
		}
		if value == "" || deletedValue.MatchString(value) {
			continue
		}
		j.set(name, value)
	}
}

// Seed loads a "k1=v1; k2=v2" string as supplied on the command line or in
// the environment. Unlike Absorb, empty values are kept.
func (j *Jar) Seed(header string) {
	if strings.TrimSpace(header) == "" {
		return
	}
	for _, kv := range strings.Split(header, ";") {
		name, value, ok := splitPair(kv)
		if !ok || name == "" {
			continue
		}
		j.set(name, value)
	}
}

// Header renders the Cookie request header, "" when the jar is empty.
// Entries appear in first-insertion order.
func (j *Jar) Header() string {
	if len(j.order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(j.order))
	for _, name := range j.order {
		parts = append(parts, name+"="+j.values[name])
	}
	return strings.Join(parts, "; ")
}

// Get returns the value stored for name.
func (j *Jar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

// Len returns the number of stored cookies
func (j *Jar) Len() int {
	return len(j.order)
}

// Names returns cookie names in insertion order.
func (j *Jar) Names() []string {
	names := make([]string, len(j.order))
	copy(names, j.order)
	return names
}

// Snapshot returns a copy of the mapping for checkpoints and snapshots.
func (j *Jar) Snapshot() map[string]string {
	out := make(map[string]string, len(j.values))
	for k, v := range j.values {
		out[k] = v
	}
	return out
}

// Hydrate copies a persisted mapping into the jar. Keys are applied in
// sorted order so a restored jar renders deterministically.
func (j *Jar) Hydrate(values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		j.set(k, values[k])
	}
}

func (j *Jar) set(name, value string) {
	if _, exists := j.values[name]; !exists {
		j.order = append(j.order, name)
	}
	j.values[name] = value
}

func splitPair(kv string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(kv, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}
