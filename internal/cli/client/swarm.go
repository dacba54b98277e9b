package client

import (
	"context"
	"strings"

	"github.com/ccheshirecat/swarmctl/internal/config"
)

// Container is one entry of ListContainers, as reported by the docker engine
// behind the orchestrator.
type Container struct {
	ID      string   `json:"Id"`
	Names   []string `json:"Names"`
	Image   string   `json:"Image"`
	ImageID string   `json:"ImageID"`
	Command string   `json:"Command"`
	Created int64    `json:"Created"`
	State   string   `json:"State"`
	Status  string   `json:"Status"`
}

// Name returns the primary container name without docker's leading slash.
func (c Container) Name() string {
	if len(c.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// SwarmAPI issues orchestrator commands. They always route with the SWARM tag.
type SwarmAPI struct {
	c *Client
}

// Swarm returns the orchestrator command set.
func (c *Client) Swarm() *SwarmAPI { return &SwarmAPI{c: c} }

func (s *SwarmAPI) send(ctx context.Context, name CmdName, content any) (Result, error) {
	return s.c.Send(ctx, NewCommand(TypeSwarm, name, content), config.SwarmTag)
}

func (s *SwarmAPI) GetConfig(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetConfig, nil)
}

func (s *SwarmAPI) ContainerLogs(ctx context.Context, name string) (Result, error) {
	return s.send(ctx, CmdGetContainerLogs, name)
}

func (s *SwarmAPI) ListVersions(ctx context.Context, name string, page int) (Result, error) {
	return s.send(ctx, CmdListVersions, ImageRequest{Name: name, Page: page})
}

// ListContainers decodes the container list.
func (s *SwarmAPI) ListContainers(ctx context.Context) ([]Container, error) {
	res, err := s.send(ctx, CmdListContainers, nil)
	if err != nil {
		return nil, err
	}
	var out []Container
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SwarmAPI) StartContainer(ctx context.Context, id string) (Result, error) {
	return s.send(ctx, CmdStartContainer, id)
}

func (s *SwarmAPI) StopContainer(ctx context.Context, id string) (Result, error) {
	return s.send(ctx, CmdStopContainer, id)
}

// UpdateNode moves a node to the latest image.
func (s *SwarmAPI) UpdateNode(ctx context.Context, id string) (Result, error) {
	return s.send(ctx, CmdUpdateNode, UpdateNodeRequest{ID: id, Version: "latest"})
}

// Statistics reports resource usage for one container, or all when name is
// empty.
func (s *SwarmAPI) Statistics(ctx context.Context, name string) (Result, error) {
	var content any
	if name != "" {
		content = name
	}
	return s.send(ctx, CmdGetStatistics, content)
}

func (s *SwarmAPI) UpdateInstance(ctx context.Context, name, version string) (Result, error) {
	return s.send(ctx, CmdUpdateInstance, UpdateInstanceRequest{Name: name, Version: version})
}

func (s *SwarmAPI) AddBoltwallAdmin(ctx context.Context, pubkey, name string) (Result, error) {
	return s.send(ctx, CmdAddBoltwallAdminPubkey, AddAdminRequest{Pubkey: pubkey, Name: name})
}

func (s *SwarmAPI) BoltwallSuperAdmin(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetBoltwallSuperAdmin, nil)
}

func (s *SwarmAPI) AddBoltwallUser(ctx context.Context, pubkey string, role uint32, name string) (Result, error) {
	return s.send(ctx, CmdAddBoltwallUser, AddBoltwallUserRequest{Pubkey: pubkey, Role: role, Name: name})
}

func (s *SwarmAPI) ListAdmins(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdListAdmins, nil)
}

func (s *SwarmAPI) DeleteSubAdmin(ctx context.Context, pubkey string) (Result, error) {
	return s.send(ctx, CmdDeleteSubAdmin, pubkey)
}

func (s *SwarmAPI) ListPaidEndpoints(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdListPaidEndpoint, nil)
}

func (s *SwarmAPI) UpdatePaidEndpoint(ctx context.Context, id uint64, status bool) (Result, error) {
	return s.send(ctx, CmdUpdatePaidEndpoint, UpdatePaidEndpointRequest{ID: id, Status: status})
}

// UpdateSwarm asks the orchestrator to update itself.
func (s *SwarmAPI) UpdateSwarm(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdUpdateSwarm, nil)
}

func (s *SwarmAPI) SetGraphAccessibility(ctx context.Context, public bool) (Result, error) {
	return s.send(ctx, CmdUpdateBoltwallAccessibility, public)
}

func (s *SwarmAPI) GraphAccessibility(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetBoltwallAccessibility, nil)
}

func (s *SwarmAPI) FeatureFlags(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetFeatureFlags, nil)
}

func (s *SwarmAPI) UpdateFeatureFlags(ctx context.Context, flags map[string]FeatureFlagRoles) (Result, error) {
	return s.send(ctx, CmdUpdateFeatureFlags, flags)
}

func (s *SwarmAPI) SecondBrainAbout(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetSecondBrainAboutDetails, nil)
}

func (s *SwarmAPI) UpdateSecondBrainAbout(ctx context.Context, about SecondBrainAbout) (Result, error) {
	return s.send(ctx, CmdUpdateSecondBrainAbout, about)
}

func (s *SwarmAPI) ImageDigest(ctx context.Context, image string) (Result, error) {
	return s.send(ctx, CmdGetImageDigest, image)
}

func (s *SwarmAPI) ImageTags(ctx context.Context, image, page, pageSize string) (Result, error) {
	return s.send(ctx, CmdGetDockerImageTags, DockerImageTagsRequest{Page: page, PageSize: pageSize, OrgImageName: image})
}

func (s *SwarmAPI) UpdateUser(ctx context.Context, req UpdateUserRequest) (Result, error) {
	return s.send(ctx, CmdUpdateUser, req)
}

func (s *SwarmAPI) APIToken(ctx context.Context) (Result, error) {
	return s.send(ctx, CmdGetApiToken, nil)
}
