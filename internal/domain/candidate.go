package domain

// Candidate is an entry in the ballot roster. The roster is configuration,
// not mutable application state.
type Candidate struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Party string `json:"party"`
}
