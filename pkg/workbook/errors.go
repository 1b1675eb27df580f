package workbook

import (
	"errors"
	"fmt"
)

// ErrNoMarkup is wrapped by ArchiveError when a package holds no workbook.
var ErrNoMarkup = errors.New("no workbook markup entry")

// ArchiveError reports a container that could not be unwrapped.
type ArchiveError struct {
	File    string
	Message string
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: archive: %s: %v", e.File, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: archive: %s", e.File, e.Message)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// MarkupError reports malformed markup.
type MarkupError struct {
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("markup error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

func (e *MarkupError) Unwrap() error { return e.Err }

// SchemaError reports a well-formed document that is not a workbook.
type SchemaError struct {
	Element string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in <%s>: %s", e.Element, e.Message)
}

// WarningKind names the entity a BuildWarning dropped or degraded.
type WarningKind string

const (
	WarnCalculatedField WarningKind = "calculated_field"
	WarnShelfField      WarningKind = "shelf_field"
	WarnFilter          WarningKind = "filter"
	WarnZone            WarningKind = "zone"
	WarnWorksheet       WarningKind = "worksheet"
	WarnDuplicate       WarningKind = "duplicate"
)

// BuildWarning records an entity dropped or degraded during Build.
type BuildWarning struct {
	Kind   WarningKind `json:"kind" yaml:"kind"`
	ID     string      `json:"id" yaml:"id"`
	Reason string      `json:"reason" yaml:"reason"`
}

func (w BuildWarning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.ID, w.Reason)
}
