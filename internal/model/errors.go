package model

import "fmt"

// SchemaError reports a broken structural contract in an input dataset:
// a required column is missing, a parcel references a nonexistent
// producer, or a declared CRS is unsupported. Fatal for the run.
type SchemaError struct {
	Dataset string
	Reason  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %s", e.Dataset, e.Reason)
}

// GeometryError reports an empty or unrepairable geometry. Recorded per
// record; the batch continues and the record keeps a null surface.
type GeometryError struct {
	FeatureID string
	Reason    string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error on %s: %s", e.FeatureID, e.Reason)
}

// TypeCoercionError reports a cell that could not be cast to its target
// type. The cell is nulled, counted as missing, and the run continues.
type TypeCoercionError struct {
	Column string
	Value  string
	Target string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %q in column %s to %s", e.Value, e.Column, e.Target)
}

// IntegrityError reports an aggregate invariant violation, such as a
// producer with zero plantations reaching synthesis. Fatal for the run;
// never reported as a silent zero.
type IntegrityError struct {
	Entity string
	Key    string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s %s: %s", e.Entity, e.Key, e.Reason)
}
