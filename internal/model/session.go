package model

// SessionState is the read-only view of the wallet session.
type SessionState struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	IsOwner   *bool  `json:"isOwner,omitempty"`
	Contract  string `json:"contract"`
}

// Owner reports whether the session is known to belong to the contract owner.
func (s SessionState) Owner() bool {
	return s.IsOwner != nil && *s.IsOwner
}
