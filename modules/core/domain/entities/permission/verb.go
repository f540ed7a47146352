package permission

import "fmt"

// Verb is an object-level permission verb. The four verbs mirror the ACL
// rows kept in user_object_permissions and group_object_permissions.
type Verb string

const (
	View   Verb = "view"
	Add    Verb = "add"
	Change Verb = "change"
	Delete Verb = "delete"
)

// AllVerbs in stable order; recorder-grade groups receive all of them.
var AllVerbs = []Verb{View, Add, Change, Delete}

// ReadVerbs is what reader-grade groups receive.
var ReadVerbs = []Verb{View}

func ParseVerb(s string) (Verb, error) {
	switch Verb(s) {
	case View, Add, Change, Delete:
		return Verb(s), nil
	}
	return "", fmt.Errorf("unknown permission verb: %q", s)
}
