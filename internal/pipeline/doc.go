// Package pipeline models the run state reported by the REFLEX server and the
// rules that decide which stage an operator may trigger next. Everything here
// is a pure function of a Snapshot; the server owns every transition and the
// client only reflects what it last observed.
package pipeline
