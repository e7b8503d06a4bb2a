package master

// Sender is how the master reaches a specific framework or slave, hiding
// the wire transport (spec.md section 6 treats serialization and delivery
// as an external collaborator; the master only needs "send this named
// message to this peer"). internal/wire.Conn satisfies this via a thin
// adapter; tests supply a fake.
type Sender interface {
	Send(kind string, payload interface{}) error
}
