package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// CmdType selects the backend subsystem a command is routed to.
type CmdType string

const (
	TypeSwarm    CmdType = "Swarm"
	TypeRelay    CmdType = "Relay"
	TypeBitcoind CmdType = "Bitcoind"
	TypeLnd      CmdType = "Lnd"
	TypeCln      CmdType = "Cln"
	TypeProxy    CmdType = "Proxy"
	TypeHsmd     CmdType = "Hsmd"
)

// CmdName selects an operation within a subsystem.
type CmdName string

const (
	CmdGetConfig                   CmdName = "GetConfig"
	CmdGetContainerLogs            CmdName = "GetContainerLogs"
	CmdListVersions                CmdName = "ListVersions"
	CmdListContainers              CmdName = "ListContainers"
	CmdStartContainer              CmdName = "StartContainer"
	CmdStopContainer               CmdName = "StopContainer"
	CmdUpdateNode                  CmdName = "UpdateNode"
	CmdGetStatistics               CmdName = "GetStatistics"
	CmdUpdateInstance              CmdName = "UpdateInstance"
	CmdAddBoltwallAdminPubkey      CmdName = "AddBoltwallAdminPubkey"
	CmdGetBoltwallSuperAdmin       CmdName = "GetBoltwallSuperAdmin"
	CmdAddBoltwallUser             CmdName = "AddBoltwallUser"
	CmdListAdmins                  CmdName = "ListAdmins"
	CmdDeleteSubAdmin              CmdName = "DeleteSubAdmin"
	CmdListPaidEndpoint            CmdName = "ListPaidEndpoint"
	CmdUpdatePaidEndpoint          CmdName = "UpdatePaidEndpoint"
	CmdUpdateSwarm                 CmdName = "UpdateSwarm"
	CmdUpdateBoltwallAccessibility CmdName = "UpdateBoltwallAccessibility"
	CmdGetBoltwallAccessibility    CmdName = "GetBoltwallAccessibility"
	CmdGetFeatureFlags             CmdName = "GetFeatureFlags"
	CmdUpdateFeatureFlags          CmdName = "UpdateFeatureFlags"
	CmdGetSecondBrainAboutDetails  CmdName = "GetSecondBrainAboutDetails"
	CmdUpdateSecondBrainAbout      CmdName = "UpdateSecondBrainAbout"
	CmdGetImageDigest              CmdName = "GetImageDigest"
	CmdGetDockerImageTags          CmdName = "GetDockerImageTags"
	CmdUpdateUser                  CmdName = "UpdateUser"
	CmdGetApiToken                 CmdName = "GetApiToken"

	CmdListUsers          CmdName = "ListUsers"
	CmdAddUser            CmdName = "AddUser"
	CmdGetChats           CmdName = "GetChats"
	CmdAddDefaultTribe    CmdName = "AddDefaultTribe"
	CmdRemoveDefaultTribe CmdName = "RemoveDefaultTribe"
	CmdGetToken           CmdName = "GetToken"
	CmdGetBalance         CmdName = "GetBalance"

	CmdGetInfo  CmdName = "GetInfo"
	CmdTestMine CmdName = "TestMine"

	CmdListChannels        CmdName = "ListChannels"
	CmdListPeers           CmdName = "ListPeers"
	CmdListPeerChannels    CmdName = "ListPeerChannels"
	CmdAddPeer             CmdName = "AddPeer"
	CmdAddChannel          CmdName = "AddChannel"
	CmdNewAddress          CmdName = "NewAddress"
	CmdAddInvoice          CmdName = "AddInvoice"
	CmdPayInvoice          CmdName = "PayInvoice"
	CmdPayKeysend          CmdName = "PayKeysend"
	CmdListPayments        CmdName = "ListPayments"
	CmdListInvoices        CmdName = "ListInvoices"
	CmdListPendingChannels CmdName = "ListPendingChannels"
	CmdListFunds           CmdName = "ListFunds"
	CmdCloseChannel        CmdName = "CloseChannel"
	CmdListPays            CmdName = "ListPays"

	CmdGetClients CmdName = "GetClients"
)

// payload describes the content a command accepts. A nil typ means the
// command carries no content.
type payload struct {
	typ      reflect.Type
	optional bool
}

func none() payload { return payload{} }

func takes[T any]() payload {
	return payload{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

func maybe[T any]() payload {
	p := takes[T]()
	p.optional = true
	return p
}

var catalogue = map[CmdType]map[CmdName]payload{
	TypeSwarm: {
		CmdGetConfig:                   none(),
		CmdGetContainerLogs:            takes[string](),
		CmdListVersions:                takes[ImageRequest](),
		CmdListContainers:              none(),
		CmdStartContainer:              takes[string](),
		CmdStopContainer:               takes[string](),
		CmdUpdateNode:                  takes[UpdateNodeRequest](),
		CmdGetStatistics:               maybe[string](),
		CmdUpdateInstance:              takes[UpdateInstanceRequest](),
		CmdAddBoltwallAdminPubkey:      takes[AddAdminRequest](),
		CmdGetBoltwallSuperAdmin:       none(),
		CmdAddBoltwallUser:             takes[AddBoltwallUserRequest](),
		CmdListAdmins:                  none(),
		CmdDeleteSubAdmin:              takes[string](),
		CmdListPaidEndpoint:            none(),
		CmdUpdatePaidEndpoint:          takes[UpdatePaidEndpointRequest](),
		CmdUpdateSwarm:                 none(),
		CmdUpdateBoltwallAccessibility: takes[bool](),
		CmdGetBoltwallAccessibility:    none(),
		CmdGetFeatureFlags:             none(),
		CmdUpdateFeatureFlags:          takes[map[string]FeatureFlagRoles](),
		CmdGetSecondBrainAboutDetails:  none(),
		CmdUpdateSecondBrainAbout:      takes[SecondBrainAbout](),
		CmdGetImageDigest:              takes[string](),
		CmdGetDockerImageTags:          takes[DockerImageTagsRequest](),
		CmdUpdateUser:                  takes[UpdateUserRequest](),
		CmdGetApiToken:                 none(),
	},
	TypeRelay: {
		CmdListUsers:          none(),
		CmdAddUser:            takes[AddRelayUserRequest](),
		CmdGetChats:           none(),
		CmdAddDefaultTribe:    takes[DefaultTribe](),
		CmdRemoveDefaultTribe: takes[DefaultTribe](),
		CmdGetToken:           none(),
		CmdGetBalance:         none(),
	},
	TypeBitcoind: {
		CmdGetInfo:    none(),
		CmdTestMine:   takes[TestMineRequest](),
		CmdGetBalance: none(),
	},
	TypeLnd: {
		CmdGetInfo:             none(),
		CmdListChannels:        none(),
		CmdListPeers:           none(),
		CmdAddPeer:             takes[AddPeerRequest](),
		CmdAddChannel:          takes[AddChannelRequest](),
		CmdNewAddress:          none(),
		CmdGetBalance:          none(),
		CmdAddInvoice:          takes[AddInvoiceRequest](),
		CmdPayInvoice:          takes[PayInvoiceRequest](),
		CmdPayKeysend:          takes[KeysendRequest](),
		CmdListPayments:        none(),
		CmdListInvoices:        none(),
		CmdListPendingChannels: none(),
	},
	TypeCln: {
		CmdGetInfo:          none(),
		CmdListPeers:        none(),
		CmdListPeerChannels: none(),
		CmdListFunds:        none(),
		CmdNewAddress:       none(),
		CmdAddPeer:          takes[AddPeerRequest](),
		CmdAddChannel:       takes[AddChannelRequest](),
		CmdAddInvoice:       takes[AddInvoiceRequest](),
		CmdPayInvoice:       takes[PayInvoiceRequest](),
		CmdPayKeysend:       takes[KeysendRequest](),
		CmdCloseChannel:     takes[CloseChannelRequest](),
		CmdListInvoices:     maybe[InvoiceFilter](),
		CmdListPays:         maybe[InvoiceFilter](),
	},
	TypeProxy: {
		CmdGetBalance: none(),
	},
	TypeHsmd: {
		CmdGetClients: none(),
	},
}

var rawContentType = reflect.TypeOf(json.RawMessage(nil))

// Command is one remote operation: a subsystem, an operation in it, and the
// operation's payload. Content must be the payload type the catalogue lists
// for the command, or a json.RawMessage when the payload comes pre-encoded.
type Command struct {
	Type    CmdType
	Name    CmdName
	Content any
}

// NewCommand builds a Command.
func NewCommand(typ CmdType, name CmdName, content any) Command {
	return Command{Type: typ, Name: name, Content: content}
}

// Validate checks the command against the closed catalogue.
func (c Command) Validate() error {
	cmds, ok := catalogue[c.Type]
	if !ok {
		return fmt.Errorf("client: unknown command type %q", c.Type)
	}
	p, ok := cmds[c.Name]
	if !ok {
		return fmt.Errorf("client: %s has no command %q", c.Type, c.Name)
	}
	if c.Content == nil {
		if p.typ != nil && !p.optional {
			return fmt.Errorf("client: %s/%s requires %s content", c.Type, c.Name, p.typ)
		}
		return nil
	}
	if p.typ == nil {
		return fmt.Errorf("client: %s/%s takes no content", c.Type, c.Name)
	}
	got := reflect.TypeOf(c.Content)
	if got != p.typ && got != rawContentType {
		return fmt.Errorf("client: %s/%s content must be %s, got %s", c.Type, c.Name, p.typ, got)
	}
	return nil
}

type envelope struct {
	Type CmdType      `json:"type"`
	Data envelopeData `json:"data"`
}

type envelopeData struct {
	Cmd     CmdName `json:"cmd"`
	Content any     `json:"content,omitempty"`
}

// Encode renders the command envelope {"type":…,"data":{"cmd":…,"content":…}}
// as compact JSON without HTML escaping. Absent content is omitted.
func (c Command) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{Type: c.Type, Data: envelopeData{Cmd: c.Name, Content: c.Content}}); err != nil {
		return "", fmt.Errorf("client: encode command: %w", err)
	}
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n")), nil
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029 escapes
// so text content reaches the backend byte for byte.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch rest := s[i+1:]; {
		case strings.HasPrefix(rest, "u2028"):
			b.WriteRune('\u2028')
			i += 5
		case strings.HasPrefix(rest, "u2029"):
			b.WriteRune('\u2029')
			i += 5
		default:
			// Keep the escape pair intact so an escaped backslash is not
			// mistaken for the start of a sequence.
			b.WriteString(s[i : i+2])
			i++
		}
	}
	return b.String()
}

// Types lists the known subsystems in a stable order.
func Types() []CmdType {
	out := make([]CmdType, 0, len(catalogue))
	for t := range catalogue {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Commands lists the operations a subsystem supports in a stable order.
func Commands(typ CmdType) []CmdName {
	cmds := catalogue[typ]
	out := make([]CmdName, 0, len(cmds))
	for name := range cmds {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseType resolves a subsystem name case-insensitively.
func ParseType(s string) (CmdType, error) {
	for t := range catalogue {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("client: unknown command type %q", s)
}

// ParseName resolves an operation name of typ case-insensitively.
func ParseName(typ CmdType, s string) (CmdName, error) {
	for name := range catalogue[typ] {
		if strings.EqualFold(string(name), s) {
			return name, nil
		}
	}
	return "", fmt.Errorf("client: %s has no command %q", typ, s)
}
