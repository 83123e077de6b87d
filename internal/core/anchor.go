package core

// Anchor is a checkpoint of the chain: the tip hash and entry count at
// the moment it was taken.
type Anchor struct {
	ID         string `json:"id" yaml:"id"`
	Hash       Hash   `json:"hash" yaml:"hash"`
	Timestamp  uint64 `json:"timestamp" yaml:"timestamp"`
	EntryCount uint64 `json:"entry_count" yaml:"entry_count"`
}

// Validate checks required fields.
func (a Anchor) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Reason: "is empty", Err: ErrInvalidAnchor}
	}
	if a.Timestamp == 0 {
		return &ValidationError{Field: "timestamp", Reason: "is zero", Err: ErrInvalidAnchor}
	}
	if a.EntryCount == 0 {
		return &ValidationError{Field: "entry_count", Reason: "is zero", Err: ErrInvalidAnchor}
	}
	return nil
}
