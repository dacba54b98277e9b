package client

// Command payloads. Field order follows the order the backend's own web
// dashboard builds these objects in, so encoded envelopes match it byte for
// byte.

type ImageRequest struct {
	Name string `json:"name"`
	Page int    `json:"page"`
}

type UpdateNodeRequest struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

type UpdateInstanceRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type AddAdminRequest struct {
	Pubkey string `json:"pubkey"`
	Name   string `json:"name,omitempty"`
}

type AddBoltwallUserRequest struct {
	Pubkey string `json:"pubkey"`
	Role   uint32 `json:"role"`
	Name   string `json:"name,omitempty"`
}

type UpdatePaidEndpointRequest struct {
	ID     uint64 `json:"id"`
	Status bool   `json:"status"`
}

// FeatureFlagRoles toggles a second-brain feature per audience.
type FeatureFlagRoles struct {
	User  bool `json:"user"`
	Admin bool `json:"admin"`
}

type SecondBrainAbout struct {
	AppVersion       string `json:"app_version"`
	Description      string `json:"description"`
	MissionStatement string `json:"mission_statement"`
	SearchTerm       string `json:"search_term"`
	Title            string `json:"title"`
}

type DockerImageTagsRequest struct {
	Page         string `json:"page"`
	PageSize     string `json:"page_size"`
	OrgImageName string `json:"org_image_name"`
}

type UpdateUserRequest struct {
	Pubkey string `json:"pubkey"`
	Name   string `json:"name"`
	Role   uint32 `json:"role"`
	ID     uint32 `json:"id"`
}

// AddRelayUserRequest is always sent as an object; a zero InitialSats
// encodes as {}.
type AddRelayUserRequest struct {
	InitialSats uint64 `json:"initial_sats,omitempty"`
}

type DefaultTribe struct {
	ID uint16 `json:"id"`
}

type TestMineRequest struct {
	Blocks  uint64 `json:"blocks"`
	Address string `json:"address,omitempty"`
}

type AddPeerRequest struct {
	Pubkey string `json:"pubkey"`
	Host   string `json:"host"`
	Alias  string `json:"alias,omitempty"`
}

type AddChannelRequest struct {
	Pubkey      string `json:"pubkey"`
	Amount      int64  `json:"amount"`
	SatsPerByte uint64 `json:"satsperbyte"`
}

type AddInvoiceRequest struct {
	AmtPaidSat int64 `json:"amt_paid_sat"`
}

type PayInvoiceRequest struct {
	PaymentRequest string `json:"payment_request"`
}

// KeysendRequest serves both lightning implementations. Lnd reads Tlvs;
// Cln reads the routing fields.
type KeysendRequest struct {
	Dest          string           `json:"dest"`
	Amt           int64            `json:"amt"`
	RouteHint     string           `json:"route_hint,omitempty"`
	MaxFeePercent float64          `json:"maxfeepercent,omitempty"`
	ExemptFee     uint64           `json:"exemptfee,omitempty"`
	Tlvs          map[uint64][]int `json:"tlvs,omitempty"`
}

type CloseChannelRequest struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
}

type InvoiceFilter struct {
	PaymentHash string `json:"payment_hash"`
}
