package module

import (
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
)

// Kind represents the privilege level a call is dispatched under.
type Kind uint8

// Set of origin kinds.
const (
	None Kind = iota
	Signed
	Root
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case Signed:
		return "signed"
	case Root:
		return "root"
	default:
		return "none"
	}
}

// Origin represents the authenticated identity a call is dispatched under.
// Who is only set for signed origins.
type Origin struct {
	Kind Kind
	Who  database.AccountID
}

// NoneOrigin returns the origin for unsigned inherent calls.
func NoneOrigin() Origin {
	return Origin{Kind: None}
}

// SignedOrigin returns the origin for a call signed by the account.
func SignedOrigin(who database.AccountID) Origin {
	return Origin{Kind: Signed, Who: who}
}

// RootOrigin returns the privileged origin.
func RootOrigin() Origin {
	return Origin{Kind: Root}
}

// String implements the fmt.Stringer interface.
func (o Origin) String() string {
	if o.Kind == Signed {
		return fmt.Sprintf("signed(%s)", o.Who)
	}
	return o.Kind.String()
}
