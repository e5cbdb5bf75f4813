package model

import "strings"

// AuthoritativeFlag is the desired content status recorded in a metatable.
type AuthoritativeFlag string

const (
	AuthoritativeNone       AuthoritativeFlag = "none"
	AuthoritativePublic     AuthoritativeFlag = "authoritative"
	AuthoritativeDeprecated AuthoritativeFlag = "deprecated"
)

// CategorySGID is the category assigned to rows read from the SGID metatable,
// which carries an authoritative column instead of a category column.
const CategorySGID = "SGID"

// Category values with special handling.
const (
	CategoryShelved = "shelved"
	CategoryStatic  = "static"
)

// Content status values understood by the hosting platform.
const (
	ContentStatusAuthoritative = "public_authoritative"
	ContentStatusDeprecated    = "deprecated"
	ContentStatusNone          = ""
)

// ParseAuthoritativeFlag maps the raw metatable value to a flag: "y" is
// authoritative, "d" is deprecated, anything else (including blank) is none.
func ParseAuthoritativeFlag(raw string) AuthoritativeFlag {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y":
		return AuthoritativePublic
	case "d":
		return AuthoritativeDeprecated
	default:
		return AuthoritativeNone
	}
}

// ContentStatus returns the platform content status this flag calls for.
func (f AuthoritativeFlag) ContentStatus() string {
	switch f {
	case AuthoritativePublic:
		return ContentStatusAuthoritative
	case AuthoritativeDeprecated:
		return ContentStatusDeprecated
	default:
		return ContentStatusNone
	}
}

// ReferenceEntry is one metatable row describing the desired state of an item.
type ReferenceEntry struct {
	SourceName    string            `json:"source_name"`
	PublishedName string            `json:"published_name"`
	Category      string            `json:"category"`
	Authoritative AuthoritativeFlag `json:"authoritative"`
}

// IsShelved reports whether the entry belongs on the shelf.
func (e ReferenceEntry) IsShelved() bool {
	return e.Category == CategoryShelved
}

// IsStatic reports whether the entry holds static data.
func (e ReferenceEntry) IsStatic() bool {
	return e.Category == CategoryStatic
}
