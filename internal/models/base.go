package models

// Variables represents a JSON object for storing arbitrary vendor data.
// It is kept on models for diagnostics only and is never serialized
// into API responses.
type Variables map[string]interface{}
