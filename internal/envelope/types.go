package envelope

// Message types understood by the daemon. Only SYN and ACK-SYN are acted on;
// the remaining tags are reserved for the extended protocol.
const (
	TypeSYN            = "SYN"
	TypeACKSYN         = "ACK-SYN"
	TypeACKData        = "ACK-DATA"
	TypeStop           = "STOP"
	TypeSleep          = "SLEEP"
	TypeReaderCommand  = "READER-COMMAND"
	TypeReaderResponse = "READER-RESPONSE"
	TypeReload         = "RELOAD"
	TypeACKUnknown     = "ACK-UNKNOWN"
	TypeSync           = "SYNC"
)

// Reserved reports whether t is one of the named protocol tags.
func Reserved(t string) bool {
	switch t {
	case TypeSYN, TypeACKSYN, TypeACKData, TypeStop, TypeSleep,
		TypeReaderCommand, TypeReaderResponse, TypeReload, TypeACKUnknown, TypeSync:
		return true
	default:
		return false
	}
}
