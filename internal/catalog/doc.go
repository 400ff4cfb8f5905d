// Package catalog loads the protein templates students transcribe.
//
// Templates ship embedded as CUE and may be extended by a user file; both are
// checked against a closed schema before use. A Selection tracks the protein
// the current session is working on and supplies the expected mRNA strand to
// the workflow.
package catalog
