// Package rtlerr holds the error kinds reported while building, elaborating
// and emitting a design. Every constructor attaches a stack trace; callers
// match kinds with errors.As.
package rtlerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// DuplicateNameError reports a name already used in a module or interface scope.
type DuplicateNameError struct {
	Scope string
	Name  string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: name %q already declared", e.Scope, e.Name)
}

// DuplicateInstanceError reports a child instance name already used in the parent.
type DuplicateInstanceError struct {
	Module   string
	Instance string
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("%s: instance %q already exists", e.Module, e.Instance)
}

// SliceRangeError reports a bit selection outside the base width.
type SliceRangeError struct {
	Base  string
	Width int
	Hi    int
	Lo    int
}

func (e *SliceRangeError) Error() string {
	if e.Hi == e.Lo {
		return fmt.Sprintf("index %d out of range for %s (width %d)", e.Hi, e.Base, e.Width)
	}
	return fmt.Sprintf("slice [%d:%d] out of range for %s (width %d)", e.Hi, e.Lo, e.Base, e.Width)
}

// WidthMismatchError reports incompatible widths on an assignment or connection.
type WidthMismatchError struct {
	Context string
	Want    int
	Got     int
}

func (e *WidthMismatchError) Error() string {
	return fmt.Sprintf("%s: width mismatch, want %d got %d", e.Context, e.Want, e.Got)
}

// DirectionConflictError reports a connection or assignment that violates port direction.
type DirectionConflictError struct {
	Module string
	Signal string
	Reason string
}

func (e *DirectionConflictError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%s: %s", e.Signal, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Signal, e.Reason)
}

// InterfaceMismatchError reports wiring between instances of different interface definitions.
type InterfaceMismatchError struct {
	Left  string
	Right string
}

func (e *InterfaceMismatchError) Error() string {
	return fmt.Sprintf("cannot connect interface %s to %s", e.Left, e.Right)
}

// MultipleDriverError reports a signal with more than one driver on some bit.
type MultipleDriverError struct {
	Module string
	Signal string
	Bit    int
}

func (e *MultipleDriverError) Error() string {
	return fmt.Sprintf("%s.%s: bit %d has multiple drivers", e.Module, e.Signal, e.Bit)
}

// UnconnectedPortError reports a required port left without a driver.
type UnconnectedPortError struct {
	Module string
	Port   string
}

func (e *UnconnectedPortError) Error() string {
	return fmt.Sprintf("%s.%s: port is not connected", e.Module, e.Port)
}

// SyntaxValidationError reports the first grammar violation in emitted text.
type SyntaxValidationError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxValidationError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// InvalidNameError reports an identifier that is malformed or reserved.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid name %q: %s", e.Name, e.Reason)
}

// UnknownNameError reports a lookup of a name that does not exist in a scope.
type UnknownNameError struct {
	Scope      string
	Name       string
	Suggestion string
}

func (e *UnknownNameError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: unknown name %q (did you mean %q?)", e.Scope, e.Name, e.Suggestion)
	}
	return fmt.Sprintf("%s: unknown name %q", e.Scope, e.Name)
}

// ScopeError reports a signal used outside the module or its direct children.
type ScopeError struct {
	Module string
	Signal string
	Owner  string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s: signal %s belongs to %s which is not in scope", e.Module, e.Signal, e.Owner)
}

// HierarchyError reports an instantiation that breaks the tree shape of the hierarchy.
type HierarchyError struct {
	Parent string
	Child  string
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("cannot instantiate %s in %s: %s", e.Child, e.Parent, e.Reason)
}

// TriggerError reports an edge trigger on a signal that is not a clock or reset.
type TriggerError struct {
	Signal string
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("%s is not a clock or reset and cannot trigger a sequential block", e.Signal)
}

// ValueRangeError reports a literal value that does not fit its width.
type ValueRangeError struct {
	Value  int64
	Width  int
	Signed bool
}

func (e *ValueRangeError) Error() string {
	kind := "unsigned"
	if e.Signed {
		kind = "signed"
	}
	return fmt.Sprintf("value %d does not fit in %d-bit %s literal", e.Value, e.Width, kind)
}

// AssignTargetError reports an assignment destination that is not assignable.
type AssignTargetError struct {
	Target string
}

func (e *AssignTargetError) Error() string {
	return fmt.Sprintf("%s is not an assignable target", e.Target)
}

func DuplicateName(scope, name string) error {
	return errors.WithStack(&DuplicateNameError{Scope: scope, Name: name})
}

func DuplicateInstance(module, instance string) error {
	return errors.WithStack(&DuplicateInstanceError{Module: module, Instance: instance})
}

func SliceRange(base string, width, hi, lo int) error {
	return errors.WithStack(&SliceRangeError{Base: base, Width: width, Hi: hi, Lo: lo})
}

func WidthMismatch(context string, want, got int) error {
	return errors.WithStack(&WidthMismatchError{Context: context, Want: want, Got: got})
}

func DirectionConflict(module, signal, reason string) error {
	return errors.WithStack(&DirectionConflictError{Module: module, Signal: signal, Reason: reason})
}

func InterfaceMismatch(left, right string) error {
	return errors.WithStack(&InterfaceMismatchError{Left: left, Right: right})
}

func MultipleDriver(module, signal string, bit int) error {
	return errors.WithStack(&MultipleDriverError{Module: module, Signal: signal, Bit: bit})
}

func UnconnectedPort(module, port string) error {
	return errors.WithStack(&UnconnectedPortError{Module: module, Port: port})
}

func SyntaxValidation(line, column int, format string, args ...interface{}) error {
	return errors.WithStack(&SyntaxValidationError{Line: line, Column: column, Message: fmt.Sprintf(format, args...)})
}

func InvalidName(name, reason string) error {
	return errors.WithStack(&InvalidNameError{Name: name, Reason: reason})
}

func UnknownName(scope, name, suggestion string) error {
	return errors.WithStack(&UnknownNameError{Scope: scope, Name: name, Suggestion: suggestion})
}

func Scope(module, signal, owner string) error {
	return errors.WithStack(&ScopeError{Module: module, Signal: signal, Owner: owner})
}

func Hierarchy(parent, child, reason string) error {
	return errors.WithStack(&HierarchyError{Parent: parent, Child: child, Reason: reason})
}

func Trigger(signal string) error {
	return errors.WithStack(&TriggerError{Signal: signal})
}

func ValueRange(value int64, width int, signed bool) error {
	return errors.WithStack(&ValueRangeError{Value: value, Width: width, Signed: signed})
}

func AssignTarget(target string) error {
	return errors.WithStack(&AssignTargetError{Target: target})
}
