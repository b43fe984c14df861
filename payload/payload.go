// Package payload assembles the ordered key/value description
// of a try job submission. Optional fields whose source value
// is empty are never emitted; their absence is structural.
package payload

import (
	"net/url"
	"strconv"
	"strings"
)

// Params carries the caller-supplied job attributes. List
// values are serialized comma-joined.
type Params struct {
	// User is the job owner handle. Always present in the
	// assembled values.
	User string

	// Email is the address results are reported to.
	Email string

	// Name is the descriptive job name. Always present in the
	// assembled values.
	Name string

	// Bots are the target agent names.
	Bots []string

	// Revision pins the base revision for the job.
	Revision string

	// Clobber forces a non-incremental build.
	Clobber bool

	// Tests overrides the tests to run.
	Tests []string

	// Root is the base subdirectory the patch applies under.
	Root string

	// PatchLevel is the -pN strip level for the patch.
	PatchLevel int

	// Issue is the code review issue to link the job to.
	Issue int

	// Patchset is the code review patchset to link the job to.
	Patchset int

	// Target selects a build configuration.
	Target string

	// Project overrides which project the job belongs to.
	Project string
}

// Field is one named value in its submission position.
type Field struct {
	Key   string
	Value string
}

// Values is the ordered submission field set.
type Values struct {
	fields []Field
}

// New assembles the ordered field set from p. Empty optional
// values are skipped entirely.
func New(p Params) *Values {
	v := &Values{}

	v.add("email", p.Email)
	v.Set("user", p.User)
	v.Set("name", p.Name)
	v.add("bot", strings.Join(p.Bots, ","))
	v.add("revision", p.Revision)

	if p.Clobber {
		v.Set("clobber", "true")
	}

	v.add("tests", strings.Join(p.Tests, ","))
	v.add("root", p.Root)
	v.add("patchlevel", itoaNonZero(p.PatchLevel))
	v.add("issue", itoaNonZero(p.Issue))
	v.add("patchset", itoaNonZero(p.Patchset))
	v.add("target", p.Target)
	v.add("project", p.Project)

	return v
}

// Set stores value under key, replacing an existing field in
// place or appending a new one.
func (v *Values) Set(key string, value string) {
	for i := range v.fields {
		if v.fields[i].Key == key {
			v.fields[i].Value = value

			return
		}
	}

	v.fields = append(v.fields, Field{
		Key:   key,
		Value: value,
	})
}

// Get returns the value stored under key, empty when absent.
func (v *Values) Get(key string) string {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value
		}
	}

	return ""
}

// Has reports whether key is present.
func (v *Values) Has(key string) bool {
	for _, f := range v.fields {
		if f.Key == key {
			return true
		}
	}

	return false
}

// Fields returns the fields in submission order.
func (v *Values) Fields() []Field {
	return v.fields
}

// Encode serializes the fields as a form-encoded request body,
// preserving submission order.
func (v *Values) Encode() string {
	var sb strings.Builder

	for i, f := range v.fields {
		if i > 0 {
			sb.WriteByte('&')
		}

		sb.WriteString(url.QueryEscape(f.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}

	return sb.String()
}

// Description renders the fields as key=value lines, one per
// field, for the mediated transport's commit message.
func (v *Values) Description() string {
	var sb strings.Builder

	for _, f := range v.fields {
		sb.WriteString(f.Key)
		sb.WriteByte('=')
		sb.WriteString(f.Value)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// add appends the field only when value is non-empty.
func (v *Values) add(key string, value string) {
	if value == "" {
		return
	}

	v.Set(key, value)
}

// itoaNonZero formats n, mapping zero to the empty string so
// unset numeric fields are omitted.
func itoaNonZero(n int) string {
	if n == 0 {
		return ""
	}

	return strconv.Itoa(n)
}
