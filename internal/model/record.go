package model

// Record is one transaction's raw field data as scraped from a bank or
// payment export: a mapping from column/key name to a string, number, or
// nested mapping. Keys are source-defined; rule field names are translated
// onto record keys by a FieldResolver at match time.
type Record = map[string]any
