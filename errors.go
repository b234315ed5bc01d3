package commons

import (
	"fmt"
	"reflect"
)

// Kind identifies the class of programmer error returned by a Container
// operation. All of these are caller mistakes; none are transient.
type Kind int

const (
	// InvalidKey means the Key's provenance does not match the Container
	// it was used against (wrong family, or a level above the Container's).
	InvalidKey Kind = iota
	// NullValue means a required value was nil.
	NullValue
	// TypeMismatch means the value's runtime type is not assignable to the
	// Key's type witness.
	TypeMismatch
	// DerivationDepthExceeded means derive was called on a level-7 Container.
	DerivationDepthExceeded
	// KeyBudgetExceeded means a family's 65,536th requestKey call was rejected.
	KeyBudgetExceeded
)

func (k Kind) String() string {
	switch k {
	case InvalidKey:
		return "invalid key"
	case NullValue:
		return "null value"
	case TypeMismatch:
		return "type mismatch"
	case DerivationDepthExceeded:
		return "derivation depth exceeded"
	case KeyBudgetExceeded:
		return "key budget exceeded"
	default:
		return "unknown"
	}
}

// Error is the single error type produced by this package. It carries
// enough context (container/family ids, level, the type involved) to
// diagnose a misuse at the call site without needing a stack trace.
type Error struct {
	Kind        Kind
	ContainerID uint64
	FamilyID    uint64
	Level       int
	Want        reflect.Type
	Got         reflect.Type
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidKey:
		return fmt.Sprintf("commons: invalid key: not valid for container %d (family %d, level %d)",
			e.ContainerID, e.FamilyID, e.Level)
	case NullValue:
		return "commons: null value: a non-nil value is required"
	case TypeMismatch:
		return fmt.Sprintf("commons: type mismatch: value of type %v is not assignable to key type %v", e.Got, e.Want)
	case DerivationDepthExceeded:
		return fmt.Sprintf("commons: derivation depth exceeded: container at level %d cannot derive further", e.Level)
	case KeyBudgetExceeded:
		return fmt.Sprintf("commons: key budget exceeded: family %d has already requested the maximum of %d keys", e.FamilyID, maxKeysPerFamily-1)
	default:
		return "commons: unknown error"
	}
}

// Is lets callers write errors.Is(err, &commons.Error{Kind: commons.InvalidKey})
// and friends, matching on Kind alone; Kind does not itself implement
// error, so the target has to be wrapped in an *Error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func invalidKeyErr(containerID, familyID uint64, level int) error {
	return &Error{Kind: InvalidKey, ContainerID: containerID, FamilyID: familyID, Level: level}
}

func nullValueErr() error {
	return &Error{Kind: NullValue}
}

func typeMismatchErr(want, got reflect.Type) error {
	return &Error{Kind: TypeMismatch, Want: want, Got: got}
}

func derivationDepthErr(level int) error {
	return &Error{Kind: DerivationDepthExceeded, Level: level}
}

func keyBudgetErr(familyID uint64) error {
	return &Error{Kind: KeyBudgetExceeded, FamilyID: familyID}
}
