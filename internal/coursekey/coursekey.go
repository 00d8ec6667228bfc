// Package coursekey parses and formats the opaque course and usage keys the
// platform uses to address courses and the blocks inside them.
package coursekey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidKey = errors.New("invalid key")

const (
	courseV1Prefix = "course-v1:"
	blockV1Prefix  = "block-v1:"
	i4xPrefix      = "i4x://"
)

var keyPart = regexp.MustCompile(`^[\w\-~.:%]+$`)

// CourseKey identifies a course run. Deprecated keys use the slash form
// "Org/Course/Run"; current keys use "course-v1:Org+Course+Run".
type CourseKey struct {
	Org        string
	Course     string
	Run        string
	Deprecated bool
}

func Parse(raw string) (CourseKey, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CourseKey{}, fmt.Errorf("%w: empty course key", ErrInvalidKey)
	}
	var parts []string
	deprecated := false
	switch {
	case strings.HasPrefix(s, courseV1Prefix):
		parts = strings.Split(strings.TrimPrefix(s, courseV1Prefix), "+")
	case strings.Count(s, "/") == 2 && !strings.Contains(s, ":"):
		parts = strings.Split(s, "/")
		deprecated = true
	default:
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	if len(parts) != 3 {
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	for _, p := range parts {
		if !keyPart.MatchString(p) {
			return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
		}
	}
	return CourseKey{Org: parts[0], Course: parts[1], Run: parts[2], Deprecated: deprecated}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) CourseKey {
	k, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return k
}

func (k CourseKey) IsZero() bool {
	return k.Org == "" && k.Course == "" && k.Run == ""
}

// Valid reports whether k names a full course run. Keys taken from i4x usage
// keys carry no run and are not valid.
func (k CourseKey) Valid() bool {
	return k.Org != "" && k.Course != "" && k.Run != ""
}

func (k CourseKey) String() string {
	if k.IsZero() {
		return ""
	}
	if k.Deprecated {
		return k.Org + "/" + k.Course + "/" + k.Run
	}
	return courseV1Prefix + k.Org + "+" + k.Course + "+" + k.Run
}

func (k CourseKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CourseKey) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k CourseKey) MakeUsageKey(blockType, blockID string) UsageKey {
	return UsageKey{Course: k, BlockType: blockType, BlockID: blockID}
}

// UsageKey addresses a block (problem, sequential, chapter...) within a course.
type UsageKey struct {
	Course    CourseKey
	BlockType string
	BlockID   string
}

func ParseUsageKey(raw string) (UsageKey, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, blockV1Prefix):
		parts := strings.Split(strings.TrimPrefix(s, blockV1Prefix), "+")
		if len(parts) != 5 || !strings.HasPrefix(parts[3], "type@") || !strings.HasPrefix(parts[4], "block@") {
			return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
		}
		course, err := Parse(courseV1Prefix + strings.Join(parts[:3], "+"))
		if err != nil {
			return UsageKey{}, err
		}
		u := UsageKey{
			Course:    course,
			BlockType: strings.TrimPrefix(parts[3], "type@"),
			BlockID:   strings.TrimPrefix(parts[4], "block@"),
		}
		if !keyPart.MatchString(u.BlockType) || !keyPart.MatchString(u.BlockID) {
			return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
		}
		return u, nil
	case strings.HasPrefix(s, i4xPrefix):
		// i4x://Org/Course/type/id carries no run.
		parts := strings.Split(strings.TrimPrefix(s, i4xPrefix), "/")
		if len(parts) != 4 {
			return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
		}
		for _, p := range parts {
			if !keyPart.MatchString(p) {
				return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
			}
		}
		return UsageKey{
			Course:    CourseKey{Org: parts[0], Course: parts[1], Deprecated: true},
			BlockType: parts[2],
			BlockID:   parts[3],
		}, nil
	default:
		return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
}

func (u UsageKey) String() string {
	if u.Course.Deprecated {
		return i4xPrefix + u.Course.Org + "/" + u.Course.Course + "/" + u.BlockType + "/" + u.BlockID
	}
	return blockV1Prefix + u.Course.Org + "+" + u.Course.Course + "+" + u.Course.Run +
		"+type@" + u.BlockType + "+block@" + u.BlockID
}

func (u UsageKey) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UsageKey) UnmarshalText(b []byte) error {
	parsed, err := ParseUsageKey(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
