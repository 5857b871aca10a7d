package domain

// DiscoveryKind tags the variant of a DiscoveryMessage.
type DiscoveryKind string

const (
	DiscoveryCreated    DiscoveryKind = "created"
	DiscoveryDestroyed  DiscoveryKind = "destroyed"
	DiscoveryCheckpoint DiscoveryKind = "checkpoint"
	DiscoveryTerminate  DiscoveryKind = "terminate"
)

// DiscoveryMessage is the tagged value the router's inbound queue
// carries. Only Kind and Id are ever both meaningful: Id is empty for
// checkpoint/terminate.
type DiscoveryMessage struct {
	Kind DiscoveryKind
	Id   string
}

func Created(id string) DiscoveryMessage    { return DiscoveryMessage{Kind: DiscoveryCreated, Id: id} }
func Destroyed(id string) DiscoveryMessage  { return DiscoveryMessage{Kind: DiscoveryDestroyed, Id: id} }
func Checkpoint() DiscoveryMessage          { return DiscoveryMessage{Kind: DiscoveryCheckpoint} }
func Terminate() DiscoveryMessage           { return DiscoveryMessage{Kind: DiscoveryTerminate} }
