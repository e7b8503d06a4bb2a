package slave

// Sender abstracts the outbound link to the master or to a locally running
// executor, mirroring internal/master.Sender (spec.md section 6 treats the
// wire transport as an external collaborator on both sides symmetrically).
type Sender interface {
	Send(kind string, payload interface{}) error
}
